// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package co2meter implements a 1D bar graph of a CO2 concentration that
// outputs to terminal (stdout) using ANSI color codes.
//
// Useful to watch a sensor from a shell while the dashboard is not set up.
package co2meter

import (
	"bytes"
	"fmt"
	"image/color"
	"io"

	"github.com/GermanBionicSystems/co2/mhz"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// Band colors the bar while the concentration is below Limit.
type Band struct {
	Limit mhz.PPM
	Color color.NRGBA
}

// DefaultBands follows the usual indoor air quality thresholds.
var DefaultBands = []Band{
	{Limit: 800, Color: color.NRGBA{0x00, 0xc0, 0x00, 0xff}},
	{Limit: 1200, Color: color.NRGBA{0xe0, 0xe0, 0x00, 0xff}},
	{Limit: 2000, Color: color.NRGBA{0xff, 0x80, 0x00, 0xff}},
	{Limit: mhz.PWMFullScale + 1, Color: color.NRGBA{0xff, 0x00, 0x00, 0xff}},
}

// DefaultCells is the bar width used when Opts.Cells is not set.
const DefaultCells = 40

var unlit = color.NRGBA{0x30, 0x30, 0x30, 0xff}

// Opts represents the options available for this display.
type Opts struct {
	// Cells is the width of the bar. Defaults to DefaultCells.
	Cells int
	// Scale is the concentration of a full bar. Defaults to mhz.PWMFullScale.
	Scale   mhz.PPM
	Bands   []Band
	Palette *ansi256.Palette
	// W defaults to a colorable stdout.
	W io.Writer

	_ struct{}
}

// Dev is a CO2 bar graph that outputs to the console.
type Dev struct {
	w       io.Writer
	cells   int
	scale   mhz.PPM
	bands   []Band
	palette ansi256.Palette

	buf bytes.Buffer
}

// New returns a Dev that displays at the console.
func New(opts *Opts) *Dev {
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	d := &Dev{
		w:       opts.W,
		cells:   opts.Cells,
		scale:   opts.Scale,
		bands:   opts.Bands,
		palette: *p,
	}
	if d.w == nil {
		d.w = colorable.NewColorableStdout()
	}
	if d.cells <= 0 {
		d.cells = DefaultCells
	}
	if d.scale <= 0 {
		d.scale = mhz.PWMFullScale
	}
	if d.bands == nil {
		d.bands = DefaultBands
	}
	return d
}

func (d *Dev) String() string {
	return "CO2Meter"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors and moves to the next line.
func (d *Dev) Halt() error {
	_, err := d.w.Write([]byte("\n\033[0m"))
	return err
}

// Lit returns the number of cells lit for ppm.
func (d *Dev) Lit(ppm mhz.PPM) int {
	if ppm <= 0 {
		return 0
	}
	lit := int(int64(ppm) * int64(d.cells) / int64(d.scale))
	return min(max(lit, 1), d.cells)
}

// BandColor returns the color of the bar for ppm.
func (d *Dev) BandColor(ppm mhz.PPM) color.NRGBA {
	for _, b := range d.bands {
		if ppm < b.Limit {
			return b.Color
		}
	}
	return d.bands[len(d.bands)-1].Color
}

// Show redraws the bar for ppm, in place.
func (d *Dev) Show(ppm mhz.PPM) error {
	// This code is designed to minimize the amount of memory allocated per call.
	d.buf.Reset()
	_, _ = d.buf.WriteString("\r\033[0m")
	lit, c := d.Lit(ppm), d.BandColor(ppm)
	for i := 0; i < d.cells; i++ {
		if i < lit {
			_, _ = io.WriteString(&d.buf, d.palette.Block(c))
		} else {
			_, _ = io.WriteString(&d.buf, d.palette.Block(unlit))
		}
	}
	_, _ = fmt.Fprintf(&d.buf, "\033[0m %5d PPM", int(ppm))
	_, err := d.buf.WriteTo(d.w)
	return err
}

var _ fmt.Stringer = &Dev{}
