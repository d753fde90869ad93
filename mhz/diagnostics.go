// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mhz

// Fields holds the values attached to a diagnostics event.
type Fields map[string]interface{}

// Recorder receives the driver's diagnostics events. The driver records every
// event; the Recorder decides what to render.
type Recorder interface {
	Record(event string, f Fields)
}

// Verbosity is implemented by Recorders that can switch verbose output on and
// off. Dev.SetDebug uses it when available.
type Verbosity interface {
	SetVerbose(enable bool)
}

// RecorderFunc adapts a function to a Recorder.
type RecorderFunc func(event string, f Fields)

func (fn RecorderFunc) Record(event string, f Fields) {
	fn(event, f)
}

type nopRecorder struct{}

func (nopRecorder) Record(string, Fields) {}
