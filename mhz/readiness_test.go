// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

import (
	"testing"
	"time"
)

func TestIsPreHeating(t *testing.T) {
	tests := []struct {
		since    time.Duration
		expected bool
	}{
		{since: 0, expected: true},
		{since: time.Minute, expected: true},
		{since: PreheatDuration - time.Millisecond, expected: true},
		{since: PreheatDuration, expected: false},
		{since: PreheatDuration + time.Millisecond, expected: false},
		{since: time.Hour, expected: false},
	}
	for _, test := range tests {
		if res := isPreHeating(test.since); res != test.expected {
			t.Errorf("isPreHeating(%s)=%t expected %t", test.since, res, test.expected)
		}
	}
}

func TestIsReady(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		variant  Variant
		elapsed  time.Duration
		expected bool
	}{
		{MHZ14A, 0, false},
		{MHZ14A, 59 * time.Millisecond, false},
		{MHZ14A, 60 * time.Millisecond, true},
		{MHZ14A, 61 * time.Millisecond, true},
		{MHZ19B, 60 * time.Millisecond, false},
		{MHZ19B, 119 * time.Millisecond, false},
		{MHZ19B, 120 * time.Millisecond, true},
		{MHZ19B, time.Second, true},
	}
	for _, test := range tests {
		res := isReady(base.Add(test.elapsed), base, test.variant)
		if res != test.expected {
			t.Errorf("%s: isReady after %s=%t expected %t", test.variant, test.elapsed, res, test.expected)
		}
	}
	// Nothing requested yet.
	if !isReady(base, time.Time{}, MHZ19B) {
		t.Error("expected ready before the first request")
	}
}

func TestVariant(t *testing.T) {
	if MHZ14A.MinRequestInterval() != 60*time.Millisecond {
		t.Error("unexpected MH-Z14A interval")
	}
	if MHZ19B.MinRequestInterval() != 120*time.Millisecond {
		t.Error("unexpected MH-Z19B interval")
	}
	if MHZ19B.String() != "MH-Z19B" || Variant(3).String() != "Variant(3)" {
		t.Errorf("unexpected names %s %s", MHZ19B, Variant(3))
	}
	if Variant(3).valid() {
		t.Error("Variant(3) should not be valid")
	}
}
