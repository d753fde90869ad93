// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package diag renders mhz diagnostics events with logrus.
package diag

import (
	"github.com/GermanBionicSystems/co2/mhz"
	log "github.com/sirupsen/logrus"
)

// Logrus implements mhz.Recorder and mhz.Verbosity.
//
// Events are logged at Debug level, except the ones listed in Warnings. The
// logger level is switched between Debug and Info by SetVerbose, so events
// only show up in debug mode.
type Logrus struct {
	Logger *log.Logger
	// Component is added to every entry as the "component" field.
	Component string
}

// Warnings lists the events logged at Warn level.
var Warnings = map[string]bool{
	"checksum mismatch":   true,
	"no response":         true,
	"incomplete response": true,
	"unexpected status":   true,
	"no pwm pulse":        true,
	"drain failed":        true,
}

// NewLogrus returns a Recorder logging to logger, or to the logrus standard
// logger if logger is nil.
func NewLogrus(logger *log.Logger, component string) *Logrus {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Logrus{Logger: logger, Component: component}
}

// Record implements mhz.Recorder.
func (l *Logrus) Record(event string, f mhz.Fields) {
	entry := l.Logger.WithFields(log.Fields(f))
	if l.Component != "" {
		entry = entry.WithField("component", l.Component)
	}
	if Warnings[event] {
		entry.Warn(event)
	} else {
		entry.Debug(event)
	}
}

// SetVerbose implements mhz.Verbosity.
func (l *Logrus) SetVerbose(enable bool) {
	if enable {
		l.Logger.SetLevel(log.DebugLevel)
	} else {
		l.Logger.SetLevel(log.InfoLevel)
	}
}

var _ mhz.Recorder = &Logrus{}
var _ mhz.Verbosity = &Logrus{}
