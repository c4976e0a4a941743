package playout

import (
	"math/rand"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/voice-sdk-go/pkg/rtpmath"
)

var testConfig = Config{Length: 5, FrameSize: 960, SampleRate: 48000}

type stream struct {
	ssrc uint32
	seq  rtpmath.Sequence
	ts   rtpmath.Timestamp
}

func newTestStream() *stream {
	return &stream{
		ssrc: rand.Uint32(),
		seq:  rtpmath.Sequence(rand.Uint32()),
		ts:   rtpmath.Timestamp(rand.Uint32()),
	}
}

func (s *stream) gen() *StoredPacket {
	p := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    120,
			SSRC:           s.ssrc,
			SequenceNumber: uint16(s.seq),
			Timestamp:      uint32(s.ts),
		},
		Payload: []byte{0xfc, 0xff, 0xfe},
	}
	raw, err := p.Marshal()
	if err != nil {
		panic(err)
	}
	s.seq = s.seq.Add(1)
	s.ts = s.ts.Add(960)
	return &StoredPacket{Payload: raw, Decrypted: true}
}

// skip drops n packets on the floor, advancing both counters.
func (s *stream) skip(n int) {
	s.seq = s.seq.Add(n)
	s.ts = s.ts.Add(uint32(n) * 960)
}

// pause advances only the timestamp, as a sender does across a speech gap.
func (s *stream) pause(frames int) {
	s.ts = s.ts.Add(uint32(frames) * 960)
}

func seqOf(t *testing.T, pkt *StoredPacket) rtpmath.Sequence {
	t.Helper()
	var hdr rtp.Header
	_, err := hdr.Unmarshal(pkt.Payload)
	require.NoError(t, err)
	return rtpmath.Sequence(hdr.SequenceNumber)
}

func TestFreshBufferIsFilling(t *testing.T) {
	b := NewBuffer(0)
	require.Equal(t, Filling, b.Fetch(testConfig).Kind)
	require.Equal(t, ModeFill, b.PlayoutMode())
}

func TestFillThenDrain(t *testing.T) {
	s := newTestStream()
	b := NewBuffer(s.seq)

	for i := 0; i < testConfig.Length-1; i++ {
		b.Store(s.gen(), testConfig)
		require.Equal(t, Filling, b.Fetch(testConfig).Kind, "fetch %d should be filling", i)
	}
	b.Store(s.gen(), testConfig)
	require.Equal(t, ModeDrain, b.PlayoutMode())

	for i := 0; i < testConfig.Length; i++ {
		require.Equal(t, Emit, b.Fetch(testConfig).Kind, "fetch %d should emit", i)
	}

	// drained dry: back to filling
	require.Equal(t, Filling, b.Fetch(testConfig).Kind)
	require.Equal(t, ModeFill, b.PlayoutMode())

	stats := b.Stats()
	require.Equal(t, uint32(5), stats.PacketsStored)
	require.Equal(t, uint32(5), stats.PacketsEmitted)
	require.Equal(t, uint32(0), stats.PacketsLost)
}

func TestMonotonicEmissionOutOfOrder(t *testing.T) {
	s := newTestStream()
	b := NewBuffer(s.seq)

	packets := make([]*StoredPacket, 8)
	for i := range packets {
		packets[i] = s.gen()
	}
	for _, i := range []int{3, 0, 5, 1, 4, 2, 7, 6} {
		b.Store(packets[i], testConfig)
	}

	var prev rtpmath.Sequence
	first := true
	for {
		res := b.Fetch(testConfig)
		if res.Kind == Filling {
			break
		}
		require.Equal(t, Emit, res.Kind)
		got := seqOf(t, res.Packet)
		if !first {
			require.Equal(t, int16(1), got.Diff(prev))
		}
		prev = got
		first = false
	}
	require.Equal(t, uint32(8), b.Stats().PacketsEmitted)
}

func TestMonotonicEmissionAcrossWrap(t *testing.T) {
	s := newTestStream()
	s.seq = 0xFFFC
	b := NewBuffer(s.seq)

	for i := 0; i < 8; i++ {
		b.Store(s.gen(), testConfig)
	}
	expected := rtpmath.Sequence(0xFFFC)
	for i := 0; i < 8; i++ {
		res := b.Fetch(testConfig)
		require.Equal(t, Emit, res.Kind)
		require.Equal(t, expected, seqOf(t, res.Packet))
		expected = expected.Add(1)
	}
}

func TestLatePacketDiscarded(t *testing.T) {
	s := newTestStream()
	late := s.gen()
	s.skip(2)

	dropped := 0
	b := NewBuffer(s.seq, WithPacketDroppedHandler(func() { dropped++ }))
	b.Store(s.gen(), testConfig)
	b.Store(late, testConfig)
	require.Equal(t, 1, b.Len())
	require.Equal(t, uint32(1), b.Stats().PacketsLate)
	require.Equal(t, 1, dropped)

	// the late packet never surfaces
	s2 := newTestStream()
	b2 := NewBuffer(s2.seq)
	lateSeq := s2.seq.Add(-3)
	for i := 0; i < testConfig.Length; i++ {
		b2.Store(s2.gen(), testConfig)
	}
	for {
		res := b2.Fetch(testConfig)
		if res.Kind == Filling {
			break
		}
		require.NotEqual(t, lateSeq, seqOf(t, res.Packet))
	}
}

func TestCeilingRejection(t *testing.T) {
	s := newTestStream()
	b := NewBuffer(s.seq)
	start := s.seq

	// non-empty buffer so the desync path stays out of play
	b.Store(s.gen(), testConfig)

	s.skip(70)
	b.Store(s.gen(), testConfig)

	require.Equal(t, start, b.NextSeq())
	require.Equal(t, 1, b.Len())
	require.Equal(t, uint32(1), b.Stats().PacketsRejected)
}

func TestDesyncRecovery(t *testing.T) {
	s := newTestStream()
	b := NewBuffer(s.seq)

	// stream restarts far ahead of the expected position
	s.skip(1000)
	jumped := s.seq
	b.Store(s.gen(), testConfig)

	require.Equal(t, jumped, b.NextSeq())
	require.Equal(t, 1, b.Len())
	require.Equal(t, uint32(1), b.Stats().Desyncs)

	for i := 0; i < testConfig.Length-1; i++ {
		b.Store(s.gen(), testConfig)
	}
	res := b.Fetch(testConfig)
	require.Equal(t, Emit, res.Kind)
	require.Equal(t, jumped, seqOf(t, res.Packet))
}

func TestDesyncAfterRepeatedRejection(t *testing.T) {
	s := newTestStream()
	b := NewBuffer(s.seq)
	b.Store(s.gen(), testConfig)

	// a long run of out-of-window packets is desync evidence even though
	// the buffer never empties
	s.skip(500)
	errThreshold := testConfig.Length * 5
	for i := 0; i < errThreshold; i++ {
		b.Store(s.gen(), testConfig)
	}
	require.Equal(t, uint32(errThreshold), b.Stats().PacketsRejected)

	jumped := s.seq
	b.Store(s.gen(), testConfig)
	require.Equal(t, jumped, b.NextSeq())
	require.Equal(t, uint32(1), b.Stats().Desyncs)
}

func TestDesyncThresholdCapsAtLargeLength(t *testing.T) {
	// Length*5 overflows int16 here, so the desync threshold caps at 32
	cfg := Config{Length: 500000, FrameSize: 960, SampleRate: 48000}
	s := newTestStream()
	b := NewBuffer(s.seq)

	s.skip(40)
	jumped := s.seq
	b.Store(s.gen(), cfg)

	// without the cap the packet would be slotted at index 40 behind a
	// run of gaps instead of resynchronizing
	require.Equal(t, jumped, b.NextSeq())
	require.Equal(t, 1, b.Len())
	require.Equal(t, uint32(1), b.Stats().Desyncs)
}

func TestFarFutureFallbackAtLargeLength(t *testing.T) {
	small := Config{Length: 2, FrameSize: 960, SampleRate: 48000}
	// Length*5*FrameSize overflows int32 here, so the far-future
	// threshold falls back to two seconds of samples
	large := Config{Length: 500000, FrameSize: 960, SampleRate: 48000}

	s := newTestStream()
	b := NewBuffer(s.seq)

	b.Store(s.gen(), small)
	s.pause(150) // 144000 samples: beyond the 96000-sample fallback
	future := s.seq
	b.Store(s.gen(), small)
	require.Equal(t, ModeDrain, b.PlayoutMode())

	require.Equal(t, Emit, b.Fetch(large).Kind)

	// without the fallback the threshold would exceed the gap and the
	// packet would be withheld as a short pause
	res := b.Fetch(large)
	require.Equal(t, Emit, res.Kind)
	require.Equal(t, future, seqOf(t, res.Packet))
	require.Equal(t, future.Add(1), b.NextSeq())
}

func TestGapHandling(t *testing.T) {
	cfg := Config{Length: 2, FrameSize: 960, SampleRate: 48000}
	s := newTestStream()
	b := NewBuffer(s.seq)

	first := s.seq
	b.Store(s.gen(), cfg)
	s.skip(1)
	b.Store(s.gen(), cfg)

	res := b.Fetch(cfg)
	require.Equal(t, Emit, res.Kind)
	require.Equal(t, first, seqOf(t, res.Packet))

	require.Equal(t, Loss, b.Fetch(cfg).Kind)

	res = b.Fetch(cfg)
	require.Equal(t, Emit, res.Kind)
	require.Equal(t, first.Add(2), seqOf(t, res.Packet))

	require.Equal(t, uint32(1), b.Stats().PacketsLost)
}

func TestShortGapPacing(t *testing.T) {
	cfg := Config{Length: 3, FrameSize: 960, SampleRate: 48000}
	s := newTestStream()
	b := NewBuffer(s.seq)

	for i := 0; i < 3; i++ {
		b.Store(s.gen(), cfg)
	}

	// a short pause in speech: timestamp jumps by less than skipAfter
	s.pause(4)
	held := s.seq
	b.Store(s.gen(), cfg)

	for i := 0; i < 3; i++ {
		require.Equal(t, Emit, b.Fetch(cfg).Kind)
	}

	// the paused packet is ahead of the cursor: withheld, not discarded
	require.Equal(t, Filling, b.Fetch(cfg).Kind)
	require.Equal(t, ModeFill, b.PlayoutMode())
	require.Equal(t, 1, b.Len())

	// re-prime; by now the cursor has caught up to the held packet
	b.Store(s.gen(), cfg)
	b.Store(s.gen(), cfg)

	res := b.Fetch(cfg)
	require.Equal(t, Emit, res.Kind)
	require.Equal(t, held, seqOf(t, res.Packet))
	require.Equal(t, Emit, b.Fetch(cfg).Kind)
	require.Equal(t, Emit, b.Fetch(cfg).Kind)
}

func TestFarFutureOverride(t *testing.T) {
	s := newTestStream()
	b := NewBuffer(s.seq)

	for i := 0; i < 4; i++ {
		b.Store(s.gen(), testConfig)
	}

	// jump of at least Length*5 frames: cursor snaps instead of stalling
	s.pause(30)
	future := s.seq
	b.Store(s.gen(), testConfig)

	for i := 0; i < 4; i++ {
		require.Equal(t, Emit, b.Fetch(testConfig).Kind)
	}
	res := b.Fetch(testConfig)
	require.Equal(t, Emit, res.Kind)
	require.Equal(t, future, seqOf(t, res.Packet))
	require.Equal(t, future.Add(1), b.NextSeq())
}

func TestDecryptedFlagPreserved(t *testing.T) {
	s := newTestStream()
	b := NewBuffer(s.seq)

	pkt := s.gen()
	pkt.Decrypted = false
	b.Store(pkt, Config{Length: 1, FrameSize: 960, SampleRate: 48000})

	res := b.Fetch(Config{Length: 1, FrameSize: 960, SampleRate: 48000})
	require.Equal(t, Emit, res.Kind)
	require.False(t, res.Packet.Decrypted)
}

func TestStoreInvalidPacketPanics(t *testing.T) {
	b := NewBuffer(0)
	require.Panics(t, func() {
		b.Store(&StoredPacket{Payload: []byte{0x01}}, testConfig)
	})
}
