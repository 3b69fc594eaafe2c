package push

import (
	"context"
	"fmt"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zijiren233/livepush/av"
	"github.com/zijiren233/livepush/container/flv"
	"github.com/zijiren233/livepush/metrics"
	"github.com/zijiren233/livepush/protocol/rtmp/core"
	"github.com/zijiren233/livepush/utils"
)

const (
	defaultChunkSize = 4096
	minChunkSize     = 128
	maxChunkSize     = 0xffffff

	defaultQueueLen = 512
	defaultTimeout  = 10 * time.Second
)

// Config is what Open needs to know about a push target.
type Config struct {
	// URL of the ingest endpoint: rtmp://host[:port]/app/stream
	URL string

	// ChunkSize the session announces for its outgoing chunk stream.
	// Clamped to the RTMP-legal range; zero means the default.
	ChunkSize uint32

	// QueueLen bounds the send queue; a full queue fails push calls fast
	// instead of blocking or growing. Zero means the default.
	QueueLen int

	// Timeout bounds the dial and every blocking protocol read.
	Timeout time.Duration

	// TLSVerify validates the server certificate on rtmps urls.
	TLSVerify bool
}

// Session is one RTMP publish context: a transport connection, the track
// infos, and a bounded send pipeline drained by a single writer goroutine.
// One caller goroutine drives the public operations; Close may be called
// concurrently from another goroutine and cancels a blocked Connect.
type Session struct {
	cfg Config

	mu          sync.Mutex
	state       State
	writeFailed bool
	audio       av.AudioInfo
	video       av.VideoInfo
	audioSet    bool
	videoSet    bool
	client      *core.ConnClient
	muxer       *flv.Muxer

	queue  chan *core.ChunkStream
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *logrus.Entry
}

// Open validates the config and creates a session in the opened state. No
// network traffic happens until Connect.
func Open(cfg Config) (*Session, error) {
	if err := validateURL(cfg.URL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArg, err)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkSize < minChunkSize {
		cfg.ChunkSize = minChunkSize
	}
	if cfg.ChunkSize > maxChunkSize {
		cfg.ChunkSize = maxChunkSize
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = defaultQueueLen
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	s := &Session{
		cfg:   cfg,
		state: StateOpened,
		queue: make(chan *core.ChunkStream, cfg.QueueLen),
		log:   logrus.WithField("url", cfg.URL),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	metrics.ActiveSessions.Inc()
	return s, nil
}

func validateURL(rtmpURL string) error {
	u, err := neturl.Parse(rtmpURL)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(u.Scheme, "rtmp") {
		return fmt.Errorf("scheme %q is not rtmp", u.Scheme)
	}
	path := strings.TrimLeft(u.Path, "/")
	ps := strings.SplitN(path, "/", 2)
	if len(ps) != 2 || ps[0] == "" || ps[1] == "" {
		return fmt.Errorf("url path %q is not app/stream", u.Path)
	}
	return nil
}

// SetAudioInfo fixes the audio track. Allowed only before Connect; the
// configuration blob is copied, the caller keeps its buffer.
func (s *Session) SetAudioInfo(info *av.AudioInfo) error {
	if s == nil || info == nil {
		return ErrInvalidArg
	}
	if info.Codec == av.AudioCodecNone || !info.Valid() {
		return fmt.Errorf("%w: incomplete audio info", ErrInvalidArg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.canSetInfo() {
		return ErrWrongState
	}
	s.audio = *info
	s.audio.SpecInfo = append([]byte(nil), info.SpecInfo...)
	s.audioSet = true
	s.state = StateInfoSet
	return nil
}

// SetVideoInfo fixes the video track. Allowed only before Connect; the
// configuration blob is copied, the caller keeps its buffer.
func (s *Session) SetVideoInfo(info *av.VideoInfo) error {
	if s == nil || info == nil {
		return ErrInvalidArg
	}
	if info.Codec == av.VideoCodecNone || !info.Valid() {
		return fmt.Errorf("%w: incomplete video info", ErrInvalidArg)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.canSetInfo() {
		return ErrWrongState
	}
	s.video = *info
	s.video.SpecInfo = append([]byte(nil), info.SpecInfo...)
	s.videoSet = true
	s.state = StateInfoSet
	return nil
}

// Connect dials the ingest endpoint and runs handshake, connect,
// createStream and publish, then sends metadata and the sequence headers
// and starts the writer. It blocks until the server acknowledged publish
// or something failed; a concurrent Close unblocks it.
func (s *Session) Connect() error {
	if s == nil {
		return ErrInvalidArg
	}
	s.mu.Lock()
	if !s.state.canConnect() {
		s.mu.Unlock()
		return ErrWrongState
	}
	if !s.audioSet && !s.videoSet {
		s.mu.Unlock()
		return fmt.Errorf("%w: no track configured", ErrInvalidArg)
	}
	muxer, err := flv.NewMuxer(s.audio, s.video)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidArg, err)
	}
	client := core.NewConnClient(
		core.WithChunkSize(s.cfg.ChunkSize),
		core.WithTimeout(s.cfg.Timeout),
		core.WithTLSVerify(s.cfg.TLSVerify),
	)
	s.muxer = muxer
	s.client = client
	s.state = StateConnecting
	s.mu.Unlock()

	err = client.Start(s.cfg.URL)
	if err == nil {
		err = s.sendPreamble(client, muxer)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		// Close won the race; the transport is already gone.
		client.Close()
		return fmt.Errorf("%w: cancelled by close", ErrConnectFail)
	}
	if err != nil {
		s.state = StateFailed
		client.Close()
		metrics.SessionsFailed.Inc()
		s.log.WithError(err).Error("rtmp connect failed")
		return fmt.Errorf("%w: %w", ErrConnectFail, err)
	}

	s.wg.Add(1)
	go s.writeLoop()
	s.state = StateStreaming
	metrics.SessionsConnected.Inc()
	s.log.Debug("rtmp publish started")
	return nil
}

// sendPreamble pushes onMetaData and the codec configuration headers
// before any frame may flow: receivers need them to start decoding.
func (s *Session) sendPreamble(client *core.ConnClient, muxer *flv.Muxer) error {
	meta, err := metaDataBody(&s.audio, &s.video)
	if err != nil {
		return err
	}
	if err := client.Write(&core.ChunkStream{
		TypeID:   av.TAG_SCRIPTDATAAMF0,
		StreamID: client.GetStreamId(),
		Length:   uint32(len(meta)),
		Data:     meta,
	}); err != nil {
		return err
	}

	vseq, err := muxer.VideoSequenceHeader()
	if err != nil {
		return err
	}
	if vseq != nil {
		if err := client.Write(&core.ChunkStream{
			TypeID:   av.TAG_VIDEO,
			StreamID: client.GetStreamId(),
			Length:   uint32(len(vseq)),
			Data:     vseq,
		}); err != nil {
			return err
		}
	}

	aseq, err := muxer.AudioSequenceHeader()
	if err != nil {
		return err
	}
	if aseq != nil {
		if err := client.Write(&core.ChunkStream{
			TypeID:   av.TAG_AUDIO,
			StreamID: client.GetStreamId(),
			Length:   uint32(len(aseq)),
			Data:     aseq,
		}); err != nil {
			return err
		}
	}

	return client.Flush()
}

// PushAudio queues one audio frame. Never blocks on the network: a full
// queue reports ErrNoMem immediately. The frame data is copied before the
// call returns.
func (s *Session) PushAudio(frame *av.AudioFrame) error {
	if s == nil || frame == nil || len(frame.Data) == 0 {
		return ErrInvalidArg
	}
	muxer, client, err := s.streamingPipeline()
	if err != nil {
		return err
	}
	body, err := muxer.MuxAudio(frame)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArg, err)
	}
	return s.enqueue(&core.ChunkStream{
		TypeID:    av.TAG_AUDIO,
		Timestamp: frame.PTS,
		StreamID:  client.GetStreamId(),
		Length:    uint32(len(body)),
		Data:      body,
	}, metrics.TypeAudio)
}

// PushVideo queues one video frame. Never blocks on the network: a full
// queue reports ErrNoMem immediately. The frame data is copied before the
// call returns.
func (s *Session) PushVideo(frame *av.VideoFrame) error {
	if s == nil || frame == nil || len(frame.Data) == 0 {
		return ErrInvalidArg
	}
	muxer, client, err := s.streamingPipeline()
	if err != nil {
		return err
	}
	body, err := muxer.MuxVideo(frame)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArg, err)
	}
	return s.enqueue(&core.ChunkStream{
		TypeID:    av.TAG_VIDEO,
		Timestamp: frame.PTS,
		StreamID:  client.GetStreamId(),
		Length:    uint32(len(body)),
		Data:      body,
	}, metrics.TypeVideo)
}

func (s *Session) streamingPipeline() (*flv.Muxer, *core.ConnClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming {
		if s.state == StateFailed && s.writeFailed {
			return nil, nil, ErrWriteFail
		}
		return nil, nil, ErrWrongState
	}
	return s.muxer, s.client, nil
}

func (s *Session) enqueue(cs *core.ChunkStream, kind string) error {
	select {
	case s.queue <- cs:
		metrics.FramesPushed.WithLabelValues(kind).Inc()
		return nil
	default:
		metrics.FramesDropped.WithLabelValues(kind).Inc()
		return ErrNoMem
	}
}

// writeLoop is the single owner of the transport's write side once
// streaming begins. Entries leave the queue in arrival order; a write
// failure is terminal for the session.
func (s *Session) writeLoop() {
	defer s.wg.Done()
	var audioClock, videoClock utils.Timestamp
	for {
		select {
		case <-s.ctx.Done():
			return
		case cs := <-s.queue:
			switch cs.TypeID {
			case av.TAG_AUDIO:
				cs.Timestamp = audioClock.Rec(cs.Timestamp)
			case av.TAG_VIDEO:
				cs.Timestamp = videoClock.Rec(cs.Timestamp)
			}
			if err := s.client.Write(cs); err != nil {
				s.failWrite(err)
				return
			}
			if err := s.client.Flush(); err != nil {
				s.failWrite(err)
				return
			}
			metrics.BytesSent.Add(float64(len(cs.Data)))
		}
	}
}

func (s *Session) failWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming {
		return
	}
	s.state = StateFailed
	s.writeFailed = true
	metrics.SessionsFailed.Inc()
	s.log.WithError(err).Error("rtmp write failed")
}

// Close tears the session down from any state: it cancels a blocked
// Connect, stops the writer, joins it, and only then lets go of the
// transport. Calling it again is a no-op success.
func (s *Session) Close() error {
	if s == nil {
		return ErrInvalidArg
	}
	s.mu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosing
	client := s.client
	s.mu.Unlock()

	s.cancel()
	if client != nil {
		client.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	metrics.ActiveSessions.Dec()
	s.log.Debug("rtmp push closed")
	return nil
}

// State returns the session's current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// URL returns the configured ingest url.
func (s *Session) URL() string {
	return s.cfg.URL
}
