// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package common contains functions used across multiple packages. For
// example, the additive checksum of the Winsen MH-Z serial protocol.
package common

// SumComplement adds the bytes modulo 256 and returns the two's complement of
// the sum, computed as 0xff - sum + 1. This is the checksum used by Winsen
// NDIR sensors. It is not a CRC.
func SumComplement(bytes []byte) byte {
	var sum byte
	for _, val := range bytes {
		sum += val
	}
	sum = 0xff - sum
	sum += 1
	return sum
}
