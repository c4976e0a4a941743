// Package voicesdk implements the receive side of a realtime voice
// client's media pipeline: decrypted transport packets go in, and a steady
// 20ms cadence of decoded frames, loss markers, and silence comes out.
//
// Per-stream jitter absorption lives in pkg/playout; this package owns the
// per-SSRC bookkeeping, the decrypt and decode stages around each buffer,
// and the pacing timer that drives playout.
package voicesdk

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/frostbyte73/core"
	"github.com/pion/opus"
	"github.com/pion/rtp"
	"go.uber.org/atomic"

	protoLogger "github.com/livekit/protocol/logger"

	"github.com/chatwire/voice-sdk-go/pkg/playout"
	"github.com/chatwire/voice-sdk-go/pkg/rtpmath"
)

// ReceiverStats counts packet and tick outcomes over the life of a
// Receiver.
type ReceiverStats struct {
	PacketsReceived uint64
	PacketsDropped  uint64
	Ticks           uint64
}

// A ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// WithDecryptor sets the decryptor applied to inbound packets when the
// decode mode calls for decryption.
func WithDecryptor(d Decryptor) ReceiverOption {
	return func(r *Receiver) {
		r.decryptor = d
	}
}

// WithClock substitutes the clock driving the playout timer. Intended for
// tests.
func WithClock(c clock.Clock) ReceiverOption {
	return func(r *Receiver) {
		r.clock = c
	}
}

// WithVoiceTickHandler sets the callback invoked once per output frame
// period with the tick's combined playout outcomes. The callback runs on
// the timer goroutine and must not block.
func WithVoiceTickHandler(f func(VoiceTick)) ReceiverOption {
	return func(r *Receiver) {
		r.onTick = f
	}
}

// A Receiver demultiplexes inbound voice packets into per-SSRC playout
// buffers and drains all of them on a shared fixed-rate timer. Push is
// called from the packet-arrival path; the timer runs on its own
// goroutine once Start is called.
type Receiver struct {
	decryptor Decryptor
	clock     clock.Clock
	onTick    func(VoiceTick)

	cfgMu  sync.RWMutex
	config Config

	mu      sync.Mutex
	streams map[uint32]*streamState

	shutdown core.Fuse
	started  atomic.Bool

	packetsReceived atomic.Uint64
	packetsDropped  atomic.Uint64
	ticks           atomic.Uint64
}

// streamState is the receive state for one SSRC. Its mutex serializes the
// packet-arrival path against the playout timer; neither Store nor Fetch
// blocks while holding it.
type streamState struct {
	mu      sync.Mutex
	buf     *playout.Buffer
	decoder opus.Decoder
	pcmBuf  []byte
}

// NewReceiver creates a receive pipeline with the given configuration.
func NewReceiver(config Config, opts ...ReceiverOption) *Receiver {
	r := &Receiver{
		clock:   clock.New(),
		config:  config,
		streams: map[uint32]*streamState{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the active configuration.
func (r *Receiver) Config() Config {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.config
}

// SetConfig swaps the active configuration. Live streams pick up the new
// values on their next packet or tick; stored packets keep the decryption
// treatment they arrived under.
func (r *Receiver) SetConfig(config Config) {
	r.cfgMu.Lock()
	defer r.cfgMu.Unlock()
	r.config = config
}

// Push ingests one inbound datagram body. The packet must be a complete
// RTP packet; depending on the decode mode it is decrypted before being
// slotted into its stream's playout buffer.
func (r *Receiver) Push(data []byte) error {
	if r.shutdown.IsBroken() {
		return ErrReceiverClosed
	}

	var hdr rtp.Header
	headerLen, err := hdr.Unmarshal(data)
	if err != nil {
		r.packetsDropped.Inc()
		return fmt.Errorf("%w: %v", ErrInvalidPacket, err)
	}

	config := r.Config()

	decrypted := false
	var packet []byte
	if config.DecodeMode.ShouldDecrypt() && r.decryptor != nil {
		packet, err = r.decryptor.DecryptPacket(data, headerLen)
		if err != nil {
			r.packetsDropped.Inc()
			getLogger().Debug("dropping packet that failed to decrypt",
				"ssrc", hdr.SSRC,
				"sequenceNumber", hdr.SequenceNumber,
				"error", err,
			)
			return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}
		decrypted = true
	} else {
		// stored packets outlive the transport's read buffer
		packet = append([]byte(nil), data...)
	}

	stream := r.getOrCreateStream(hdr.SSRC, rtpmath.Sequence(hdr.SequenceNumber))

	stream.mu.Lock()
	stream.buf.Store(&playout.StoredPacket{
		Payload:   packet,
		Decrypted: decrypted,
	}, config.playoutConfig())
	stream.mu.Unlock()

	r.packetsReceived.Inc()
	return nil
}

func (r *Receiver) getOrCreateStream(ssrc uint32, firstSeq rtpmath.Sequence) *streamState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stream, ok := r.streams[ssrc]; ok {
		return stream
	}
	stream := &streamState{
		buf: playout.NewBuffer(firstSeq,
			playout.WithLogger(protoLogger.GetLogger().WithValues("ssrc", ssrc)),
			playout.WithPacketDroppedHandler(func() { r.packetsDropped.Inc() }),
		),
		decoder: opus.NewDecoder(),
		pcmBuf:  make([]byte, StereoFrameSize*2),
	}
	r.streams[ssrc] = stream
	return stream
}

// RemoveStream drops all receive state for an SSRC, typically on a
// client-disconnect notification from the control channel.
func (r *Receiver) RemoveStream(ssrc uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streams, ssrc)
}

// Start launches the playout timer. It may be called once.
func (r *Receiver) Start() {
	if !r.started.Swap(true) {
		go r.run()
	}
}

// Close stops the playout timer. Push returns ErrReceiverClosed afterward.
func (r *Receiver) Close() {
	r.shutdown.Break()
}

func (r *Receiver) run() {
	ticker := r.clock.Ticker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-r.shutdown.Watch():
			return
		case <-ticker.C:
			tick := r.tick()
			if r.onTick != nil {
				r.onTick(tick)
			}
		}
	}
}

// tick fetches one playout outcome from every tracked stream.
func (r *Receiver) tick() VoiceTick {
	config := r.Config()
	playoutConfig := config.playoutConfig()

	r.mu.Lock()
	ssrcs := make([]uint32, 0, len(r.streams))
	states := make([]*streamState, 0, len(r.streams))
	for ssrc, stream := range r.streams {
		ssrcs = append(ssrcs, ssrc)
		states = append(states, stream)
	}
	r.mu.Unlock()

	tick := VoiceTick{Speaking: map[uint32]VoiceData{}}
	for i, stream := range states {
		ssrc := ssrcs[i]

		stream.mu.Lock()
		result := stream.buf.Fetch(playoutConfig)

		switch result.Kind {
		case playout.Emit:
			data := VoiceData{SSRC: ssrc, Packet: result.Packet}
			if config.DecodeMode == DecodeModeDecode {
				data.PCM = stream.decode(result.Packet, config.Channels)
			}
			tick.Speaking[ssrc] = data

		case playout.Loss:
			data := VoiceData{SSRC: ssrc, Missed: true}
			if config.DecodeMode == DecodeModeDecode {
				data.PCM = make([]int16, MonoFrameSize*config.Channels.Count())
			}
			tick.Speaking[ssrc] = data

		case playout.Filling:
			tick.Silent = append(tick.Silent, ssrc)
		}
		stream.mu.Unlock()
	}

	r.ticks.Inc()
	return tick
}

// decode runs the stream's Opus decoder over an emitted packet's body.
// Returns nil if the packet cannot be decoded; the caller still delivers
// the raw packet. Called with the stream mutex held.
func (s *streamState) decode(pkt *playout.StoredPacket, channels Channels) []int16 {
	if !pkt.Decrypted {
		return nil
	}

	var hdr rtp.Header
	headerLen, err := hdr.Unmarshal(pkt.Payload)
	if err != nil {
		panic(fmt.Sprintf("voicesdk: previously valid packet failed to parse during decode: %v", err))
	}
	body := pkt.Payload[headerLen:]
	if len(body) == 0 {
		return nil
	}

	if _, _, err := s.decoder.Decode(body, s.pcmBuf); err != nil {
		getLogger().Debug("opus decode failed", "ssrc", hdr.SSRC, "error", err)
		return nil
	}

	// decoder output is mono S16LE; duplicate samples across both
	// channels for stereo output
	mono := make([]int16, MonoFrameSize)
	for i := range mono {
		mono[i] = int16(s.pcmBuf[i*2]) | int16(s.pcmBuf[i*2+1])<<8
	}
	if channels.Count() == 1 {
		return mono
	}
	stereo := make([]int16, 2*len(mono))
	for i, sample := range mono {
		stereo[2*i] = sample
		stereo[2*i+1] = sample
	}
	return stereo
}

// Stats returns a snapshot of the receiver's counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		PacketsReceived: r.packetsReceived.Load(),
		PacketsDropped:  r.packetsDropped.Load(),
		Ticks:           r.ticks.Load(),
	}
}

// PlayoutStats returns the playout buffer counters for one SSRC.
func (r *Receiver) PlayoutStats(ssrc uint32) (playout.BufferStats, bool) {
	r.mu.Lock()
	stream, ok := r.streams[ssrc]
	r.mu.Unlock()
	if !ok {
		return playout.BufferStats{}, false
	}
	return stream.buf.Stats(), true
}
