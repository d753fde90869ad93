// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

import (
	"fmt"
	"time"
)

// Variant is the sensor model.
type Variant int

const (
	MHZ14A Variant = 14
	MHZ19B Variant = 19
)

// PreheatDuration is the warm up time after power on. Readings taken earlier
// are not valid. It is the same for all variants.
const PreheatDuration = 3 * time.Minute

// MinRequestInterval returns the shortest allowed time between two UART
// requests.
func (v Variant) MinRequestInterval() time.Duration {
	switch v {
	case MHZ14A:
		return 60 * time.Millisecond
	case MHZ19B:
		return 120 * time.Millisecond
	}
	return 0
}

func (v Variant) valid() bool {
	return v == MHZ14A || v == MHZ19B
}

func (v Variant) String() string {
	switch v {
	case MHZ14A:
		return "MH-Z14A"
	case MHZ19B:
		return "MH-Z19B"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// isPreHeating reports whether sinceStart is still inside the preheat window.
func isPreHeating(sinceStart time.Duration) bool {
	return sinceStart < PreheatDuration
}

// isReady reports whether a new request may be sent at now. A zero
// lastRequest means nothing was requested yet.
func isReady(now, lastRequest time.Time, v Variant) bool {
	if lastRequest.IsZero() {
		return true
	}
	return now.Sub(lastRequest) >= v.MinRequestInterval()
}
