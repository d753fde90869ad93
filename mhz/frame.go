// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

import (
	"fmt"

	"github.com/GermanBionicSystems/co2/common"
	"periph.io/x/conn/v3/physic"
)

const (
	// FrameSize is the length of every request and response frame.
	FrameSize = 9
	// FrameMarker is the first byte of every frame.
	FrameMarker byte = 0xff

	cmdReadConcentration byte = 0x86
	sensorNumber         byte = 0x01

	// The temperature byte is offset by 44 on the MH-Z14A and MH-Z19B.
	temperatureOffset = 44
)

var requestReadConcentration = [FrameSize]byte{FrameMarker, sensorNumber, cmdReadConcentration, 0x00, 0x00, 0x00, 0x00, 0x00, 0x79}

// PPM=Parts Per Million. Units of measure for CO2 concentration.
type PPM int

func (ppm PPM) String() string {
	return fmt.Sprintf("%d PPM", int(ppm))
}

// Response is a decoded response frame.
type Response struct {
	CO2 PPM
	// Coarse sensor temperature. Only meaningful as a relative value.
	Temperature physic.Temperature
	// Status is 0 on the MH-Z14A and MH-Z19B. Other models may use it.
	Status byte
	// Command is the command echoed back by the sensor.
	Command byte
	Raw     [FrameSize]byte
}

// RequestFrame returns the "read concentration" request frame.
func RequestFrame() []byte {
	frame := requestReadConcentration
	return frame[:]
}

// Checksum returns the checksum of a frame. It covers bytes 1 to 7; the
// marker and the checksum byte itself are excluded. A shorter frame is summed
// as far as it goes.
func Checksum(frame []byte) byte {
	if len(frame) < 2 {
		return 0
	}
	return common.SumComplement(frame[1:min(len(frame), FrameSize-1)])
}

// DecodeResponse validates a complete response frame and extracts the
// reading. A frame not starting with the frame marker is rejected with
// ErrIncomplete. Frames failing validation are never partially interpreted.
func DecodeResponse(raw []byte) (Response, error) {
	r := Response{}
	if len(raw) != FrameSize {
		return r, fmt.Errorf("mhz: %d byte frame: %w", len(raw), ErrIncomplete)
	}
	if raw[0] != FrameMarker {
		return r, fmt.Errorf("mhz: frame starts with 0x%02X: %w", raw[0], ErrIncomplete)
	}
	if check := Checksum(raw); raw[FrameSize-1] != check {
		return r, &ChecksumError{Received: raw[FrameSize-1], Expected: check}
	}
	copy(r.Raw[:], raw)
	r.Command = raw[1]
	r.CO2 = PPM(256*int(raw[2]) + int(raw[3]))
	r.Temperature = celsius(int(raw[4]) - temperatureOffset)
	r.Status = raw[5]
	return r, nil
}

func celsius(c int) physic.Temperature {
	return physic.ZeroCelsius + physic.Temperature(c)*physic.Celsius
}
