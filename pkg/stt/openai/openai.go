// Package openai provides an OpenAI Whisper-backed STT provider. The Whisper
// API has no realtime socket, so StartStream is emulated by chunk batching:
// incoming PCM is buffered, carved into fixed-duration chunks, wrapped in a
// WAV container, and submitted to the batch transcription endpoint. Every
// emitted event is final; the provider never produces interim results.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/triscribe/triscribe/pkg/audio"
	"github.com/triscribe/triscribe/pkg/stt"
)

const (
	defaultModel      = "whisper-1"
	defaultSampleRate = 16000

	// defaultChunkSeconds is the duration of PCM gathered before a chunk is
	// submitted for transcription.
	defaultChunkSeconds = 1

	// defaultFlushInterval is how often the session sweeps its buffer for
	// complete chunks independent of audio arrival.
	defaultFlushInterval = time.Second

	// closeTimeout bounds how long Close waits for buffered audio to be
	// transcribed and flushed.
	closeTimeout = 30 * time.Second
)

// Compile-time assertions.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*session)(nil)
)

// config holds optional configuration for the provider.
type config struct {
	baseURL       string
	model         string
	language      string
	chunkSeconds  int
	flushInterval time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Primarily used in
// tests to point at a local mock server.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model (e.g., "whisper-1").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage sets the ISO-639-1 input language hint (e.g., "en").
func WithLanguage(language string) Option {
	return func(c *config) { c.language = language }
}

// WithChunkSeconds sets how many seconds of PCM are gathered per emulated
// streaming chunk. Defaults to one second.
func WithChunkSeconds(seconds int) Option {
	return func(c *config) { c.chunkSeconds = seconds }
}

// WithFlushInterval sets how often a session sweeps its buffer for complete
// chunks independent of audio arrival.
func WithFlushInterval(d time.Duration) Option {
	return func(c *config) { c.flushInterval = d }
}

// Provider implements stt.Provider backed by the OpenAI audio API.
type Provider struct {
	client        oai.Client
	model         string
	language      string
	chunkSeconds  int
	flushInterval time.Duration
}

// New creates a new OpenAI Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{
		model:         defaultModel,
		chunkSeconds:  defaultChunkSeconds,
		flushInterval: defaultFlushInterval,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.chunkSeconds <= 0 {
		return nil, errors.New("openai: chunk seconds must be positive")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}

	return &Provider{
		client:        oai.NewClient(reqOpts...),
		model:         cfg.model,
		language:      cfg.language,
		chunkSeconds:  cfg.chunkSeconds,
		flushInterval: cfg.flushInterval,
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "openai" }

// ── Batch ──────────────────────────────────────────────────────────────────────

// TranscribeBatch submits the complete audio file to the transcription
// endpoint. The audio is sent as-is; mimeType determines the file name hint.
func (p *Provider) TranscribeBatch(ctx context.Context, audio []byte, mimeType string) (stt.BatchResult, error) {
	start := time.Now()
	text, err := p.transcribe(ctx, audio, fileNameForMime(mimeType), mimeType)
	if err != nil {
		return stt.BatchResult{}, fmt.Errorf("openai: transcribe: %w", err)
	}
	return stt.BatchResult{
		Text:           text,
		ProcessingTime: time.Since(start),
		Details: map[string]any{
			"model": p.model,
		},
	}, nil
}

// transcribe submits one audio file to the transcription endpoint and returns
// the trimmed transcript text.
func (p *Provider) transcribe(ctx context.Context, data []byte, fileName, mimeType string) (string, error) {
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(data), fileName, mimeType),
		Model: oai.AudioModel(p.model),
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// fileNameForMime returns a file name with an extension matching the mime
// type. The API infers the container format from the extension.
func fileNameForMime(mimeType string) string {
	switch mimeType {
	case "audio/mpeg", "audio/mp3":
		return "audio.mp3"
	case "audio/mp4", "audio/m4a":
		return "audio.m4a"
	case "audio/ogg":
		return "audio.ogg"
	case "audio/webm":
		return "audio.webm"
	case "audio/flac":
		return "audio.flac"
	default:
		return "audio.wav"
	}
}

// ── Streaming (chunk batching) ─────────────────────────────────────────────────

// StartStream returns an emulated streaming session. There is no connection
// to establish, so the handle is ready immediately. Audio accumulates in a
// buffer; whenever the buffer holds a full chunk of PCM it is wrapped in a
// WAV container and transcribed. A periodic sweep bound to the session
// lifetime performs the same pass between arrivals. Closing the session
// transcribes any remaining audio, so short trailing buffers still produce a
// final result. Chunks whose transcription fails are skipped.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	sr := cfg.SampleRate
	if sr == 0 {
		sr = defaultSampleRate
	}
	ch := cfg.Channels
	if ch == 0 {
		ch = 1
	}

	threshold := audio.BytesPerSecond(sr, ch) * p.chunkSeconds
	if threshold == 0 {
		return nil, fmt.Errorf("openai: invalid stream config: sample rate %d, channels %d", sr, ch)
	}

	sctx, cancel := context.WithCancel(context.Background())

	sess := &session{
		provider:   p,
		sampleRate: sr,
		channels:   ch,
		threshold:  threshold,
		results:    make(chan stt.Event, 64),
		audio:      make(chan []byte, 256),
		done:       make(chan struct{}),
		cancel:     cancel,
	}

	sess.wg.Add(1)
	go sess.run(sctx)

	return sess, nil
}

// session is an emulated streaming session over the batch endpoint. It
// implements stt.SessionHandle.
type session struct {
	provider   *Provider
	sampleRate int
	channels   int
	threshold  int

	results chan stt.Event
	audio   chan []byte
	buf     []byte

	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// SendAudio queues a PCM audio chunk for buffering.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return stt.ErrSessionClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return stt.ErrSessionClosed
	}
}

// Results returns the channel of transcript events.
func (s *session) Results() <-chan stt.Event { return s.results }

// Close drains and transcribes any buffered audio, then tears the session
// down. The flush is bounded by closeTimeout.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)

		finished := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(closeTimeout):
			// Flush took too long; force the loop out.
			s.cancel()
			<-finished
		}
		s.cancel()
	})
	return nil
}

// run is the single goroutine that owns the PCM buffer. Arriving audio and
// the periodic sweep both carve complete chunks; session close flushes the
// remainder.
func (s *session) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	ticker := time.NewTicker(s.provider.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case chunk := <-s.audio:
			s.buf = append(s.buf, chunk...)
			s.transcribeFullChunks(ctx)
		case <-ticker.C:
			s.transcribeFullChunks(ctx)
		case <-s.done:
			// Drain queued audio, carve the last complete chunks, then
			// flush whatever partial buffer remains.
			for {
				select {
				case chunk := <-s.audio:
					s.buf = append(s.buf, chunk...)
				default:
					s.transcribeFullChunks(ctx)
					s.flushRemainder(ctx)
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// transcribeFullChunks carves and transcribes every complete chunk currently
// in the buffer. Bytes beyond the last complete chunk stay buffered.
func (s *session) transcribeFullChunks(ctx context.Context) {
	for len(s.buf) >= s.threshold {
		chunk := s.buf[:s.threshold]
		s.buf = s.buf[s.threshold:]
		s.transcribeChunk(ctx, chunk)
	}
}

// flushRemainder transcribes any partial buffer left at session close.
func (s *session) flushRemainder(ctx context.Context) {
	if len(s.buf) == 0 {
		return
	}
	s.transcribeChunk(ctx, s.buf)
	s.buf = nil
}

// transcribeChunk wraps one PCM chunk in a WAV container, transcribes it, and
// emits the text as a final event. Failed or empty transcriptions produce no
// event.
func (s *session) transcribeChunk(ctx context.Context, pcm []byte) {
	wav := audio.EncodeWAV(pcm, s.sampleRate, s.channels)
	text, err := s.provider.transcribe(ctx, wav, "audio.wav", "audio/wav")
	if err != nil || text == "" {
		return
	}

	select {
	case s.results <- stt.Event{Kind: stt.KindFinal, Text: text}:
	case <-ctx.Done():
	}
}
