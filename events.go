package voicesdk

import "github.com/chatwire/voice-sdk-go/pkg/playout"

// VoiceData is one stream's contribution to a tick.
type VoiceData struct {
	SSRC uint32

	// Packet is the emitted packet, nil when the frame was lost in
	// transit (Missed is then true).
	Packet *playout.StoredPacket

	// PCM is the decoded audio for this frame. Nil unless the decode mode
	// is DecodeModeDecode; zero samples when the frame was missed.
	PCM []int16

	// Missed reports that the expected frame never arrived and the slot
	// was played out as loss.
	Missed bool
}

// VoiceTick is a snapshot of every tracked stream for one output frame
// period. Streams still filling their playout buffers appear in Silent.
type VoiceTick struct {
	Speaking map[uint32]VoiceData
	Silent   []uint32
}
