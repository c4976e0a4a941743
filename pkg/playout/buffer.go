// Package playout implements the receive-side playout buffer: it absorbs
// an out-of-order, lossy packet stream and hands back one frame per fixed
// output tick.
//
// The buffer alternates between two modes. In Fill mode it accumulates
// packets until it holds Config.Length frames of margin and emits nothing.
// In Drain mode it releases one slot per Fetch. Speech gaps shorter than
// the buffer are reproduced by cycling Drain -> Fill using the RTP
// timestamps of adjacent packets; a packet whose timestamp is implausibly
// far ahead instead resets the playout cursor so one bad timestamp cannot
// stall the stream.
package playout

import (
	"fmt"
	"math"
	"sync"

	"github.com/gammazero/deque"
	"github.com/go-logr/logr"
	"github.com/pion/rtp"

	"github.com/livekit/protocol/logger"

	"github.com/chatwire/voice-sdk-go/pkg/rtpmath"
)

// maxSlots is the hard ceiling on how far ahead of the next expected
// sequence number a packet may be slotted, independent of the configured
// buffer length. It bounds worst-case memory and latency from a single
// bad header.
const maxSlots = 64

// Config carries the buffer parameters read on every Store and Fetch.
// Callers may change it between calls; the buffer holds no copy.
type Config struct {
	// Length is the number of frames to pre-buffer before draining.
	Length int
	// FrameSize is the sample count of one output frame at the stream
	// clock rate.
	FrameSize uint32
	// SampleRate is the stream clock rate in samples per second, used
	// only as an overflow fallback for threshold computation.
	SampleRate uint32
}

// Mode is the buffer's emission state.
type Mode int

const (
	// ModeFill accumulates latency margin and emits nothing.
	ModeFill Mode = iota
	// ModeDrain emits one slot per Fetch.
	ModeDrain
)

func (m Mode) String() string {
	if m == ModeDrain {
		return "Drain"
	}
	return "Fill"
}

// BufferStats counts packet outcomes over the life of a Buffer.
type BufferStats struct {
	PacketsStored   uint32
	PacketsEmitted  uint32
	PacketsLost     uint32
	PacketsLate     uint32
	PacketsRejected uint32
	Desyncs         uint32
}

// A Buffer holds a bounded, sparse, sequence-ordered queue of pending
// packets for one stream. Store is called from the packet-arrival path and
// Fetch from the output-pacing timer; the internal mutex is the only
// synchronization between them.
type Buffer struct {
	onPacketDropped func()
	logger          logger.Logger

	mu         sync.Mutex
	buf        deque.Deque[*StoredPacket]
	mode       Mode
	nextSeq    rtpmath.Sequence
	currentTS  rtpmath.Timestamp
	hasTS      bool
	storeFails int
	stats      BufferStats
}

// NewBuffer creates a playout buffer expecting nextSeq as the first
// sequence number to emit, normally the sequence number of the stream's
// first received packet.
func NewBuffer(nextSeq rtpmath.Sequence, opts ...Option) *Buffer {
	b := &Buffer{
		nextSeq: nextSeq,
		logger:  logger.LogRLogger(logr.Discard()),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Store slots a received packet into the position derived from its
// sequence number, subject to the slot ceiling. Out-of-window packets are
// dropped; a sustained run of them, or an out-of-window packet arriving to
// an empty buffer, is treated as a stream restart and resynchronizes the
// buffer to the incoming sequence numbers.
func (b *Buffer) Store(pkt *StoredPacket, cfg Config) {
	var hdr rtp.Header
	if _, err := hdr.Unmarshal(pkt.Payload); err != nil {
		panic(fmt.Sprintf("playout: previously valid packet failed to parse during store: %v", err))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hasTS {
		// First packet establishes the playout horizon: the cursor starts
		// a full buffer length ahead so the first drained packet already
		// has its margin.
		b.currentTS = rtpmath.Timestamp(hdr.Timestamp).Add(uint32(cfg.Length) * cfg.FrameSize)
		b.hasTS = true
	}

	pktSeq := rtpmath.Sequence(hdr.SequenceNumber)
	desiredIndex := int(pktSeq.Diff(b.nextSeq))

	errThreshold := cfg.Length * 5
	if errThreshold > math.MaxInt16 {
		errThreshold = 32
	}
	handlingDesync := (b.buf.Len() == 0 || b.storeFails >= errThreshold) &&
		desiredIndex >= errThreshold

	switch {
	case desiredIndex < 0:
		b.logger.Debugw("missed packet arrived late, discarding from playout",
			"sequenceNumber", hdr.SequenceNumber,
			"nextSequenceNumber", uint16(b.nextSeq),
		)
		b.stats.PacketsLate++
		if b.onPacketDropped != nil {
			b.onPacketDropped()
		}

	case !handlingDesync && desiredIndex >= maxSlots:
		b.logger.Debugw("packet arrived beyond playout max length",
			"ssrc", hdr.SSRC,
			"sequenceNumber", hdr.SequenceNumber,
			"timestamp", hdr.Timestamp,
			"wantedSlot", desiredIndex,
			"nextSequenceNumber", uint16(b.nextSeq),
		)
		b.storeFails++
		b.stats.PacketsRejected++
		if b.onPacketDropped != nil {
			b.onPacketDropped()
		}

	default:
		index := desiredIndex
		if handlingDesync {
			b.logger.Debugw("playout desync, resynchronizing to incoming stream",
				"ssrc", hdr.SSRC,
				"sequenceNumber", hdr.SequenceNumber,
				"nextSequenceNumber", uint16(b.nextSeq),
			)
			b.buf.Clear()
			b.nextSeq = pktSeq
			b.stats.Desyncs++
			index = 0
		}
		for b.buf.Len() <= index {
			b.buf.PushBack(nil)
		}
		b.buf.Set(index, pkt)
		b.storeFails = 0
		b.stats.PacketsStored++
	}

	if b.buf.Len() >= cfg.Length {
		b.mode = ModeDrain
	}
}

// Fetch returns the next playout outcome. The pacing timer must call it
// exactly once per output frame period and handle all three outcomes
// without blocking.
func (b *Buffer) Fetch(cfg Config) Lookup {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mode == ModeFill {
		return Lookup{Kind: Filling}
	}

	var out Lookup
	if b.buf.Len() == 0 {
		out = Lookup{Kind: Filling}
	} else if pkt := b.buf.PopFront(); pkt == nil {
		b.nextSeq = b.nextSeq.Add(1)
		b.stats.PacketsLost++
		out = Lookup{Kind: Loss}
	} else {
		out = b.fetchStored(pkt, cfg)
	}

	if b.buf.Len() == 0 {
		b.mode = ModeFill
		b.hasTS = false
	}
	if b.hasTS {
		b.currentTS = b.currentTS.Add(cfg.FrameSize)
	}

	return out
}

// fetchStored decides whether the packet at the front of the buffer is due
// at the current playout cursor. Called with the mutex held.
func (b *Buffer) fetchStored(pkt *StoredPacket, cfg Config) Lookup {
	var hdr rtp.Header
	if _, err := hdr.Unmarshal(pkt.Payload); err != nil {
		panic(fmt.Sprintf("playout: previously valid packet failed to parse during fetch: %v", err))
	}

	// The cursor captures the current playout point; every packet with a
	// smaller or equal timestamp is due. tsDiff >= 0 is equivalent to
	// packetTime <= cursorTime, computed wrap-safe.
	pktTS := rtpmath.Timestamp(hdr.Timestamp)
	tsDiff := b.currentTS.Diff(pktTS)

	// A stream can legitimately pair seq-adjacent packets with wildly
	// different timestamps, e.g. a run of audio whose first packet carries
	// a stale timestamp after a long silence. Short gaps must be
	// reproduced by refilling, but a gap larger than several full buffer
	// cycles would jam the buffer forever, so beyond that the packet's
	// timestamp is taken as authoritative instead.
	skipAfter := int64(cfg.Length) * 5 * int64(cfg.FrameSize)
	if skipAfter > math.MaxInt32 {
		skipAfter = int64(cfg.SampleRate) * 2
	}

	switch {
	case tsDiff >= 0:
		// At or before the playout cursor.
		b.nextSeq = rtpmath.Sequence(hdr.SequenceNumber).Add(1)
		b.stats.PacketsEmitted++
		return Lookup{Kind: Emit, Packet: pkt}

	case int64(tsDiff) <= -skipAfter:
		// More than five buffer lengths ahead: snap the cursor.
		b.nextSeq = rtpmath.Sequence(hdr.SequenceNumber).Add(1)
		b.currentTS = pktTS
		b.stats.PacketsEmitted++
		return Lookup{Kind: Emit, Packet: pkt}

	default:
		// Slightly ahead of the cursor: a short deliberate pause. Hold the
		// packet and rebuild margin until the cursor catches up.
		b.logger.Debugw("withholding packet", "tsDiff", tsDiff)
		b.buf.PushFront(pkt)
		b.mode = ModeFill
		return Lookup{Kind: Filling}
	}
}

// Len returns the number of slots currently held, gaps included.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// NextSeq returns the sequence number expected at the next emission.
func (b *Buffer) NextSeq() rtpmath.Sequence {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq
}

// PlayoutMode returns the buffer's current emission mode.
func (b *Buffer) PlayoutMode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// Stats returns a snapshot of the buffer's counters.
func (b *Buffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
