// Package rtpmath provides wrap-safe arithmetic over RTP sequence numbers
// and timestamps.
//
// RTP sequence numbers are 16-bit and timestamps are 32-bit; both wrap
// silently. Comparing or subtracting them with plain integer arithmetic is
// incorrect near the wrap boundary, so all ordering decisions go through
// Diff, which returns the shortest directed distance on the cyclic number
// line. Exactly half the ring is "ahead" and half "behind", with the exact
// midpoint resolving to "behind" (standard modular sequence comparison).
package rtpmath

// Sequence is an RTP sequence number with wraparound semantics.
type Sequence uint16

// Add returns the sequence advanced by n, wrapping at 16 bits.
func (s Sequence) Add(n int) Sequence {
	return Sequence(uint16(s) + uint16(n))
}

// Diff returns how far s is ahead of o on the 16-bit ring. A positive
// result means s comes after o, negative means before.
func (s Sequence) Diff(o Sequence) int16 {
	return int16(uint16(s) - uint16(o))
}

// Before reports whether s is strictly earlier than o.
func (s Sequence) Before(o Sequence) bool {
	return s.Diff(o) < 0
}

// Timestamp is an RTP timestamp with wraparound semantics. It advances by
// the sample count of each frame at the stream's clock rate.
type Timestamp uint32

// Add returns the timestamp advanced by n samples, wrapping at 32 bits.
func (t Timestamp) Add(n uint32) Timestamp {
	return Timestamp(uint32(t) + n)
}

// Diff returns how far t is ahead of o on the 32-bit ring. A positive
// result means t comes after o, negative means before.
func (t Timestamp) Diff(o Timestamp) int32 {
	return int32(uint32(t) - uint32(o))
}

// Before reports whether t is strictly earlier than o.
func (t Timestamp) Before(o Timestamp) bool {
	return t.Diff(o) < 0
}
