// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package co2 is a container for the Winsen MH-Z CO2 sensor driver and the
// tooling around it.
//
// The driver lives in package mhz. Package monitor polls it and exports the
// readings, cmd/mhz wires everything into a daemon.
package co2
