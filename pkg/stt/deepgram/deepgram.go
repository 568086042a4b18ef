// Package deepgram provides a Deepgram-backed STT provider. Streaming uses
// the Deepgram WebSocket API with interim results and utterance-end events
// enabled; batch uses the prerecorded /v1/listen REST endpoint. It implements
// the stt.Provider interface.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/triscribe/triscribe/pkg/stt"
)

const (
	defaultStreamEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultBatchEndpoint  = "https://api.deepgram.com/v1/listen"
	defaultModel          = "nova-2"
	defaultLanguage       = "en-US"
	defaultSampleRate     = 16000

	// utteranceEndMs is the silence gap after which Deepgram emits an
	// UtteranceEnd message.
	utteranceEndMs = 1000

	// closeTimeout bounds how long Close waits for the server to flush
	// in-flight audio after the CloseStream message.
	closeTimeout = 5 * time.Second
)

// Compile-time assertions.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*session)(nil)
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-2", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en-US").
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithSampleRate sets the provider-level default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithStreamEndpoint overrides the WebSocket endpoint. Primarily used in
// tests to point at a local mock server.
func WithStreamEndpoint(endpoint string) Option {
	return func(p *Provider) { p.streamEndpoint = endpoint }
}

// WithBatchEndpoint overrides the prerecorded REST endpoint.
func WithBatchEndpoint(endpoint string) Option {
	return func(p *Provider) { p.batchEndpoint = endpoint }
}

// Provider implements stt.Provider backed by the Deepgram API.
type Provider struct {
	apiKey         string
	model          string
	language       string
	sampleRate     int
	streamEndpoint string
	batchEndpoint  string
	httpClient     *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:         apiKey,
		model:          defaultModel,
		language:       defaultLanguage,
		sampleRate:     defaultSampleRate,
		streamEndpoint: defaultStreamEndpoint,
		batchEndpoint:  defaultBatchEndpoint,
		httpClient:     &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "deepgram" }

// ── Batch ──────────────────────────────────────────────────────────────────────

// batchResponse is the JSON structure returned by the prerecorded endpoint.
type batchResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// TranscribeBatch submits the complete audio to the prerecorded endpoint and
// returns the transcript of the first channel's best alternative.
func (p *Provider) TranscribeBatch(ctx context.Context, audio []byte, mimeType string) (stt.BatchResult, error) {
	u, err := url.Parse(p.batchEndpoint)
	if err != nil {
		return stt.BatchResult{}, fmt.Errorf("deepgram: parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("punctuate", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(audio))
	if err != nil {
		return stt.BatchResult{}, fmt.Errorf("deepgram: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	if mimeType != "" {
		req.Header.Set("Content-Type", mimeType)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.BatchResult{}, fmt.Errorf("deepgram: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return stt.BatchResult{}, fmt.Errorf("deepgram: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return stt.BatchResult{}, fmt.Errorf("deepgram: server returned HTTP %d: %s", resp.StatusCode, body)
	}

	var br batchResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return stt.BatchResult{}, fmt.Errorf("deepgram: parse response: %w", err)
	}
	if len(br.Results.Channels) == 0 || len(br.Results.Channels[0].Alternatives) == 0 {
		return stt.BatchResult{}, errors.New("deepgram: response contains no alternatives")
	}

	alt := br.Results.Channels[0].Alternatives[0]
	conf := alt.Confidence
	return stt.BatchResult{
		Text:           alt.Transcript,
		ProcessingTime: time.Since(start),
		Confidence:     &conf,
		Details: map[string]any{
			"model":          p.model,
			"audio_duration": br.Metadata.Duration,
		},
	}, nil
}

// ── Streaming ──────────────────────────────────────────────────────────────────

// StartStream opens a streaming transcription session with Deepgram. The
// session is ready once the WebSocket handshake completes; establishment is
// bounded by ctx.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildStreamURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}

	// The loops outlive the establishment context, so they run on their own
	// cancellable context tied to the session lifetime.
	sctx, cancel := context.WithCancel(context.Background())

	sess := &session{
		conn:    conn,
		results: make(chan stt.Event, 64),
		audio:   make(chan []byte, 256),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	sess.wg.Add(2)
	go sess.readLoop(sctx)
	go sess.writeLoop(sctx)

	return sess, nil
}

// buildStreamURL constructs the Deepgram streaming endpoint URL for cfg.
func (p *Provider) buildStreamURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.streamEndpoint)
	if err != nil {
		return "", err
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", lang)
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", strconv.Itoa(utteranceEndMs))
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	if cfg.Channels > 0 {
		q.Set("channels", strconv.Itoa(cfg.Channels))
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// streamResponse is the JSON structure of Deepgram streaming messages. Only
// the Results and UtteranceEnd types are of interest.
type streamResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// session is a live Deepgram streaming session. It implements stt.SessionHandle.
type session struct {
	conn    *websocket.Conn
	results chan stt.Event
	audio   chan []byte

	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// SendAudio queues a PCM audio chunk for delivery to Deepgram.
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

// Close terminates the session cleanly. The CloseStream message asks Deepgram
// to flush any audio still in flight before the socket goes away.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))

		finished := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-ctx.Done():
			// Server did not wind down in time; force the loops out.
			s.cancel()
			<-finished
		}
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
	})
	return nil
}

// writeLoop reads from the audio channel and sends binary messages to Deepgram.
func (s *session) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				return
			}
			if err := s.conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				return
			}
		case <-s.done:
			// Drain the audio channel before exiting.
			for {
				select {
				case chunk, ok := <-s.audio:
					if !ok {
						return
					}
					_ = s.conn.Write(ctx, websocket.MessageBinary, chunk)
				default:
					return
				}
			}
		}
	}
}

// readLoop receives JSON messages from Deepgram and dispatches them to the
// results channel.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancellation — exit gracefully.
			return
		}

		ev, ok := parseStreamMessage(msg)
		if !ok {
			continue
		}

		select {
		case s.results <- ev:
		case <-s.done:
		}
	}
}

// parseStreamMessage parses a raw Deepgram WebSocket message into an Event.
// Returns (Event, true) on success, or (zero, false) if the message should be
// ignored. UtteranceEnd messages carry no transcript; the event's Text is
// left empty and the consumer supplies the last seen transcript.
func parseStreamMessage(data []byte) (stt.Event, bool) {
	var resp streamResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return stt.Event{}, false
	}

	switch resp.Type {
	case "UtteranceEnd":
		return stt.Event{Kind: stt.KindUtteranceEnd}, true

	case "Results":
		if len(resp.Channel.Alternatives) == 0 {
			return stt.Event{}, false
		}
		alt := resp.Channel.Alternatives[0]
		if alt.Transcript == "" {
			return stt.Event{}, false
		}
		kind := stt.KindInterim
		if resp.IsFinal {
			kind = stt.KindFinal
		}
		return stt.Event{Kind: kind, Text: alt.Transcript, Confidence: alt.Confidence}, true

	default:
		return stt.Event{}, false
	}
}
