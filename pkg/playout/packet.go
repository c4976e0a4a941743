package playout

// A StoredPacket is one received audio frame held for playout.
type StoredPacket struct {
	// Payload is the full RTP packet, header included. It is exactly the
	// byte sequence that was validated at ingest and is never modified.
	Payload []byte

	// Decrypted records whether the packet body was decrypted on arrival.
	// The decode mode can change while a buffer is live, so the flag
	// travels with each packet rather than with the stream.
	Decrypted bool
}

// LookupKind describes the outcome of a single Fetch.
type LookupKind int

const (
	// Filling means the buffer is still accumulating margin; the caller
	// must not advance audio output this tick.
	Filling LookupKind = iota
	// Emit means a packet is ready for decode.
	Emit
	// Loss means the slot for the expected sequence number never arrived;
	// the caller should synthesize loss concealment or silence.
	Loss
)

func (k LookupKind) String() string {
	switch k {
	case Filling:
		return "Filling"
	case Emit:
		return "Emit"
	case Loss:
		return "Loss"
	}
	return "unknown"
}

// Lookup is the result of one Fetch. Packet is non-nil only when Kind is
// Emit.
type Lookup struct {
	Kind   LookupKind
	Packet *StoredPacket
}
