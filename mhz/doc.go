// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mhz provides a driver for the Winsen MH-Z14A and MH-Z19B NDIR CO2
// sensors.
//
// The sensors report the CO2 concentration over two independent channels. The
// UART channel runs at 9600 8N1 and answers a fixed 9 byte "read
// concentration" request with a 9 byte frame that also carries a coarse
// temperature and a status byte. The PWM channel encodes the concentration in
// the duty cycle of a 1004ms period signal.
//
// The sensor needs 3 minutes of preheat after power on before its readings
// are valid, and must not be queried more often than every 60ms (MH-Z14A) or
// 120ms (MH-Z19B).
//
// # Datasheets
//
// https://www.winsen-sensor.com/d/files/infrared-gas-sensor/mh-z14a_co2-manual-v1_01.pdf
//
// https://www.winsen-sensor.com/d/files/infrared-gas-sensor/mh-z19b-co2-ver1_0.pdf
package mhz
