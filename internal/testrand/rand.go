// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package testrand implements generating random base types for testing.
package testrand

import (
	"math/rand"

	"github.com/google/uuid"
)

// Intn returns, as an int, a non-negative pseudo-random number in [0,n)
// from the default Source.
// It panics if n <= 0.
func Intn(n int) int {
	return rand.Intn(n)
}

// Read reads pseudo-random data into data.
func Read(data []byte) {
	const newSourceThreshold = 64
	if len(data) < newSourceThreshold {
		_, _ = rand.Read(data)
		return
	}

	src := rand.NewSource(rand.Int63())
	r := rand.New(src)
	_, _ = r.Read(data)
}

// BytesN generates size amount of random data.
func BytesN(size int) []byte {
	data := make([]byte, size)
	Read(data)
	return data
}

// UUID creates a random uuid.
func UUID() uuid.UUID {
	var id uuid.UUID
	Read(id[:])
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}
