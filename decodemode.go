package voicesdk

// DecodeMode selects how far received packets are processed before being
// handed to the application.
type DecodeMode int

const (
	// DecodeModePass hands packets over without any changes applied.
	// No CPU work involved.
	DecodeModePass DecodeMode = iota
	// DecodeModeDecrypt decrypts the body of each received packet.
	// Small per-packet CPU use.
	DecodeModeDecrypt
	// DecodeModeDecode decrypts and decodes each received packet,
	// accounting for losses. Larger per-packet CPU use.
	DecodeModeDecode
)

// ShouldDecrypt returns whether this mode decrypts received packets.
func (m DecodeMode) ShouldDecrypt() bool {
	return m != DecodeModePass
}

func (m DecodeMode) String() string {
	switch m {
	case DecodeModePass:
		return "Pass"
	case DecodeModeDecrypt:
		return "Decrypt"
	case DecodeModeDecode:
		return "Decode"
	}
	return "unknown"
}

// Channels is the channel layout of decoded output audio.
type Channels int

const (
	// ChannelsStereo decodes received packets into two interleaved
	// channels. Mono packets have their samples duplicated across both.
	// The default choice.
	ChannelsStereo Channels = iota
	// ChannelsMono decodes received packets into a single channel.
	ChannelsMono
)

// Count returns the number of interleaved channels.
func (c Channels) Count() int {
	if c == ChannelsMono {
		return 1
	}
	return 2
}

// DecodeSampleRate is the sample rate of decoded output audio.
type DecodeSampleRate int

const (
	// DecodeRate48000 decodes at or above CD quality. The default.
	DecodeRate48000 DecodeSampleRate = iota
	DecodeRate24000
	DecodeRate16000
	DecodeRate12000
	DecodeRate8000
)

// Hz returns the rate in samples per second.
func (r DecodeSampleRate) Hz() int {
	switch r {
	case DecodeRate8000:
		return 8000
	case DecodeRate12000:
		return 12000
	case DecodeRate16000:
		return 16000
	case DecodeRate24000:
		return 24000
	}
	return 48000
}
