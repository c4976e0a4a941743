package voicesdk

import "github.com/chatwire/voice-sdk-go/pkg/playout"

// Config carries the receive pipeline's tunables. The zero value is not
// usable; construct with NewConfig.
type Config struct {
	// PlayoutBufferLength is the number of frames to pre-buffer per stream
	// before playout begins. Larger values absorb more network jitter at
	// the cost of added latency.
	PlayoutBufferLength int

	// DecodeMode selects how far received packets are processed.
	DecodeMode DecodeMode

	// Channels is the channel layout of decoded audio when using
	// DecodeModeDecode.
	Channels Channels

	// DecodeSampleRate is the sample rate of decoded audio when using
	// DecodeModeDecode.
	DecodeSampleRate DecodeSampleRate
}

// A ConfigOption overrides a Config default.
type ConfigOption func(*Config)

// WithPlayoutBufferLength sets the pre-buffer depth in frames. Values
// below 1 are clamped to 1.
func WithPlayoutBufferLength(frames int) ConfigOption {
	return func(c *Config) {
		if frames < 1 {
			frames = 1
		}
		c.PlayoutBufferLength = frames
	}
}

// WithDecodeMode sets the packet processing mode.
func WithDecodeMode(mode DecodeMode) ConfigOption {
	return func(c *Config) {
		c.DecodeMode = mode
	}
}

// WithChannels sets the decoded channel layout.
func WithChannels(ch Channels) ConfigOption {
	return func(c *Config) {
		c.Channels = ch
	}
}

// WithDecodeSampleRate sets the decoded sample rate.
func WithDecodeSampleRate(rate DecodeSampleRate) ConfigOption {
	return func(c *Config) {
		c.DecodeSampleRate = rate
	}
}

// NewConfig returns a Config with defaults applied: a playout depth of
// DefaultPlayoutBufferLength frames, decrypt-and-decode processing, stereo
// output at 48kHz.
func NewConfig(opts ...ConfigOption) Config {
	c := Config{
		PlayoutBufferLength: DefaultPlayoutBufferLength,
		DecodeMode:          DecodeModeDecode,
		Channels:            ChannelsStereo,
		DecodeSampleRate:    DecodeRate48000,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// playoutConfig derives the per-buffer view of this configuration.
func (c Config) playoutConfig() playout.Config {
	return playout.Config{
		Length:     c.PlayoutBufferLength,
		FrameSize:  MonoFrameSize,
		SampleRate: SampleRate,
	}
}
