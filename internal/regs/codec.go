// Package regs implements the holding-register codec and the shared
// register image the line engine publishes into and the Modbus server
// serves out of.
package regs

import (
	"encoding/binary"
	"math"
)

// PackFloat32 returns the (high, low) 16-bit big-endian halves of the
// IEEE-754 encoding of value, high word at the lower register index.
func PackFloat32(value float32) (hi, lo uint16) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], math.Float32bits(value))
	return binary.BigEndian.Uint16(buf[0:2]), binary.BigEndian.Uint16(buf[2:4])
}

// UnpackFloat32 reverses PackFloat32.
func UnpackFloat32(hi, lo uint16) float32 {
	var buf [4]byte
	binary.BigEndian.PutUint16(buf[0:2], hi)
	binary.BigEndian.PutUint16(buf[2:4], lo)
	return math.Float32frombits(binary.BigEndian.Uint32(buf[:]))
}

// PackUint32 returns the (high, low) 16-bit big-endian halves of value.
func PackUint32(value uint32) (hi, lo uint16) {
	return uint16(value >> 16), uint16(value & 0xFFFF)
}

// UnpackUint32 reverses PackUint32.
func UnpackUint32(hi, lo uint16) uint32 {
	return uint32(hi)<<16 | uint32(lo)
}

// BoolReg encodes a bool as a single register: 1 or 0.
func BoolReg(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}
