// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	// PWMCycle is the period of the PWM output.
	PWMCycle = 1004 * time.Millisecond
	// PWMFullScale is the concentration at 100% of the usable duty cycle.
	PWMFullScale PPM = 5000

	// The output has a fixed 2ms high and 2ms low lead at each end of the
	// cycle.
	pwmLeadMs = 2
)

// Pulser measures the length of one high pulse on the PWM output.
type Pulser interface {
	// HighPulse waits for a rising edge, then returns the time until the
	// following falling edge. It returns 0 if no complete pulse was seen
	// within timeout.
	HighPulse(timeout time.Duration) time.Duration
}

// PulserFunc adapts a function to a Pulser.
type PulserFunc func(timeout time.Duration) time.Duration

func (f PulserFunc) HighPulse(timeout time.Duration) time.Duration {
	return f(timeout)
}

// DecodePWM converts the length of a high pulse to a concentration. The
// result is false for a zero length pulse, which is what Pulser returns on
// timeout.
func DecodePWM(high time.Duration) (PPM, bool) {
	th := int(high / time.Millisecond)
	if th == 0 {
		return 0, false
	}
	tl := int(PWMCycle/time.Millisecond) - th
	ppm := PWMFullScale * PPM(th-pwmLeadMs) / PPM(th+tl-2*pwmLeadMs)
	// Pulses inside the lead times are clamped to the measurement range.
	return max(0, min(ppm, PWMFullScale)), true
}

// ReadCO2PWM measures the PWM output and returns the CO2 concentration.
//
// Pulses are measured until one is valid. Every measurement is bounded by
// Opts.PulseTimeout but, unless Opts.PWMMaxAttempts is set, the number of
// attempts is not: with a dead or disconnected signal this call blocks
// forever. With PWMMaxAttempts set, ErrNoResponse is returned once they are
// used up.
func (d *Dev) ReadCO2PWM() (PPM, error) {
	if d.pulser == nil {
		return 0, ErrNotConnected
	}
	d.pwmMu.Lock()
	defer d.pwmMu.Unlock()

	d.rec.Record("reading pwm", Fields{"timeout": d.opts.PulseTimeout})
	for attempt := 1; d.opts.PWMMaxAttempts <= 0 || attempt <= d.opts.PWMMaxAttempts; attempt++ {
		high := d.pulser.HighPulse(d.opts.PulseTimeout)
		if ppm, ok := DecodePWM(high); ok {
			d.rec.Record("pwm reading", Fields{"co2": int(ppm), "high": high, "attempts": attempt})
			return ppm, nil
		}
	}
	d.rec.Record("no pwm pulse", Fields{"attempts": d.opts.PWMMaxAttempts})
	return 0, ErrNoResponse
}

// PinPulser measures pulses on a gpio pin using edge detection.
type PinPulser struct {
	p gpio.PinIn
}

// NewPinPulser configures p for edge detection on both edges and returns a
// Pulser for it.
func NewPinPulser(p gpio.PinIn) (*PinPulser, error) {
	if err := p.In(gpio.PullNoChange, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("mhz: pwm pin %s: %w", p, err)
	}
	return &PinPulser{p: p}, nil
}

// HighPulse implements Pulser. If the pin is already high when called, that
// partial pulse is skipped.
func (pp *PinPulser) HighPulse(timeout time.Duration) time.Duration {
	deadline := time.Now().Add(timeout)
	waitWhile := func(l gpio.Level) bool {
		for pp.p.Read() == l {
			remaining := time.Until(deadline)
			if remaining <= 0 || !pp.p.WaitForEdge(remaining) {
				return false
			}
		}
		return true
	}
	if !waitWhile(gpio.High) || !waitWhile(gpio.Low) {
		return 0
	}
	start := time.Now()
	if !waitWhile(gpio.High) {
		return 0
	}
	return time.Since(start)
}

func (pp *PinPulser) String() string {
	return fmt.Sprintf("mhz pwm: %s", pp.p)
}
