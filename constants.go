package voicesdk

import "time"

const (
	// SampleRate is the sample rate of the voice transport's RTP clock, in Hz.
	SampleRate = 48000

	// AudioFrameRate is the number of audio frames emitted per second.
	AudioFrameRate = 50

	// FrameDuration is the wall-clock length of one audio frame.
	FrameDuration = 20 * time.Millisecond

	// MonoFrameSize is the sample count of one frame of mono audio, and the
	// amount the RTP timestamp advances per frame.
	MonoFrameSize = SampleRate / AudioFrameRate

	// StereoFrameSize is the sample count of one frame of stereo audio.
	StereoFrameSize = 2 * MonoFrameSize

	// DefaultPlayoutBufferLength is the default number of frames buffered
	// per stream before playout begins.
	DefaultPlayoutBufferLength = 5
)
