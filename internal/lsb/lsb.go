// Package lsb hides a byte payload in the least significant bits of an RGB grid.
//
// The hidden stream is a 4-byte big-endian length followed by the payload. Its
// bits are written most significant first, one per sample, into the first
// samples of the grid in SampleIndex order. Everything after the written prefix
// is left untouched. The package never looks inside the payload.
package lsb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// LengthPrefixLen is the size of the big-endian length header.
const LengthPrefixLen = 4

const lengthPrefixBits = LengthPrefixLen * 8

var (
	// ErrCapacityExceeded is wrapped by *CapacityError.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrCorruptFraming means the grid does not hold a payload written by Hide,
	// or was altered after hiding.
	ErrCorruptFraming = errors.New("corrupt framing")
)

// CapacityError reports a payload that needs more bits than the carrier has.
type CapacityError struct {
	Needed    uint64
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("data too large: %d bits needed, image has %d bits capacity", e.Needed, e.Available)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// Frame returns the length-prefixed form of payload.
func Frame(payload []byte) []byte {
	framed := make([]byte, LengthPrefixLen+len(payload))
	binary.BigEndian.PutUint32(framed, uint32(len(payload)))
	copy(framed[LengthPrefixLen:], payload)
	return framed
}

// NeededBits is the number of samples Hide writes for a payload of n bytes.
func NeededBits(n uint64) uint64 {
	return 8 * (LengthPrefixLen + n)
}

// MaxPayload is the largest payload, in bytes, that fits in g.
func MaxPayload(g *Grid) int {
	n := g.Capacity()/8 - LengthPrefixLen
	if n < 0 {
		return 0
	}
	if uint64(n) > math.MaxUint32 {
		return math.MaxUint32
	}
	return n
}

// Hide returns a copy of g whose leading sample LSBs carry the framed payload.
// g itself is not modified.
func Hide(g *Grid, payload []byte) (*Grid, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	needed := NeededBits(uint64(len(payload)))
	if uint64(len(payload)) > math.MaxUint32 || needed > uint64(g.Capacity()) {
		return nil, &CapacityError{Needed: needed, Available: g.Capacity()}
	}

	out := g.Clone()
	samples := out.Samples()
	framed := Frame(payload)
	for i := 0; i < len(framed)*8; i++ {
		samples[i] = samples[i]&0xFE | bitAt(framed, i)
	}
	return out, nil
}

// Extract reads the length header and returns the payload that follows it.
// A grid that never went through Hide usually fails with ErrCorruptFraming but
// may also yield garbage; callers must validate what they get back.
func Extract(g *Grid) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	available := g.Capacity()
	if available < lengthPrefixBits {
		return nil, fmt.Errorf("%w: image has %d bits, the length header alone needs %d",
			ErrCorruptFraming, available, lengthPrefixBits)
	}

	samples := g.Samples()
	length := binary.BigEndian.Uint32(readBytes(samples, 0, LengthPrefixLen))
	total := NeededBits(uint64(length))
	if total > uint64(available) {
		return nil, fmt.Errorf("%w: header claims %d bytes (%d bits), image has %d bits",
			ErrCorruptFraming, length, total, available)
	}

	return readBytes(samples, lengthPrefixBits, int(length)), nil
}

// bitAt returns bit i of data, counting from the most significant bit of data[0].
func bitAt(data []byte, i int) uint8 {
	return data[i/8] >> (7 - uint(i%8)) & 1
}

// readBytes packs the LSBs of n*8 samples starting at sample offset, most
// significant bit first.
func readBytes(samples []uint8, offset, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n*8; i++ {
		out[i/8] |= (samples[offset+i] & 1) << (7 - uint(i%8))
	}
	return out
}
