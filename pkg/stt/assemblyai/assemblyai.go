// Package assemblyai provides an AssemblyAI-backed STT provider. Streaming
// uses the v3 realtime WebSocket API (binary PCM in, Turn events out); batch
// uses the two-step upload + transcript REST flow with polling. It implements
// the stt.Provider interface.
package assemblyai

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
	defaultAPIEndpoint    = "https://api.assemblyai.com"
	defaultStreamEndpoint = "wss://streaming.assemblyai.com/v3/ws"
	defaultSampleRate     = 16000
	defaultPollInterval   = time.Second

	// closeTimeout bounds how long Close waits for the server to flush
	// in-flight audio after the Terminate message.
	closeTimeout = 5 * time.Second
)

// Compile-time assertions.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*session)(nil)
)

// Option is a functional option for configuring the AssemblyAI Provider.
type Option func(*Provider)

// WithSampleRate sets the provider-level default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithAPIEndpoint overrides the REST API base URL. Primarily used in tests.
func WithAPIEndpoint(endpoint string) Option {
	return func(p *Provider) { p.apiEndpoint = endpoint }
}

// WithStreamEndpoint overrides the realtime WebSocket endpoint.
func WithStreamEndpoint(endpoint string) Option {
	return func(p *Provider) { p.streamEndpoint = endpoint }
}

// WithPollInterval sets the interval between transcript status polls during
// batch transcription. Defaults to one second.
func WithPollInterval(d time.Duration) Option {
	return func(p *Provider) { p.pollInterval = d }
}

// Provider implements stt.Provider backed by the AssemblyAI API.
type Provider struct {
	apiKey         string
	sampleRate     int
	apiEndpoint    string
	streamEndpoint string
	pollInterval   time.Duration
	httpClient     *http.Client
}

// New creates a new AssemblyAI Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("assemblyai: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:         apiKey,
		sampleRate:     defaultSampleRate,
		apiEndpoint:    defaultAPIEndpoint,
		streamEndpoint: defaultStreamEndpoint,
		pollInterval:   defaultPollInterval,
		httpClient:     &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "assemblyai" }

// ── Batch ──────────────────────────────────────────────────────────────────────

// transcriptStatus is the JSON shape shared by the transcript create and poll
// responses.
type transcriptStatus struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Text          string   `json:"text"`
	Confidence    *float64 `json:"confidence"`
	AudioDuration float64  `json:"audio_duration"`
	Error         string   `json:"error"`
}

// TranscribeBatch uploads the audio, creates a transcript job, and polls
// until the job completes or fails. Polling is bounded only by ctx.
func (p *Provider) TranscribeBatch(ctx context.Context, audio []byte, mimeType string) (stt.BatchResult, error) {
	start := time.Now()

	audioURL, err := p.upload(ctx, audio, mimeType)
	if err != nil {
		return stt.BatchResult{}, err
	}

	id, err := p.createTranscript(ctx, audioURL)
	if err != nil {
		return stt.BatchResult{}, err
	}

	for {
		st, err := p.pollTranscript(ctx, id)
		if err != nil {
			return stt.BatchResult{}, err
		}

		switch st.Status {
		case "completed":
			return stt.BatchResult{
				Text:           st.Text,
				ProcessingTime: time.Since(start),
				Confidence:     st.Confidence,
				Details: map[string]any{
					"transcript_id":  st.ID,
					"audio_duration": st.AudioDuration,
				},
			}, nil
		case "error":
			return stt.BatchResult{}, fmt.Errorf("assemblyai: transcription failed: %s", st.Error)
		}

		select {
		case <-ctx.Done():
			return stt.BatchResult{}, fmt.Errorf("assemblyai: poll transcript: %w", ctx.Err())
		case <-time.After(p.pollInterval):
		}
	}
}

// upload POSTs the raw audio bytes and returns the temporary audio URL.
func (p *Provider) upload(ctx context.Context, audio []byte, mimeType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiEndpoint+"/v2/upload", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("assemblyai: create upload request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mimeType)

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := p.doJSON(req, &out); err != nil {
		return "", fmt.Errorf("assemblyai: upload: %w", err)
	}
	if out.UploadURL == "" {
		return "", errors.New("assemblyai: upload response missing upload_url")
	}
	return out.UploadURL, nil
}

// createTranscript submits a transcript job for the uploaded audio.
func (p *Provider) createTranscript(ctx context.Context, audioURL string) (string, error) {
	body, _ := json.Marshal(map[string]string{"audio_url": audioURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiEndpoint+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assemblyai: create transcript request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var st transcriptStatus
	if err := p.doJSON(req, &st); err != nil {
		return "", fmt.Errorf("assemblyai: create transcript: %w", err)
	}
	if st.ID == "" {
		return "", errors.New("assemblyai: transcript response missing id")
	}
	return st.ID, nil
}

// pollTranscript fetches the current status of a transcript job.
func (p *Provider) pollTranscript(ctx context.Context, id string) (transcriptStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiEndpoint+"/v2/transcript/"+id, nil)
	if err != nil {
		return transcriptStatus{}, fmt.Errorf("assemblyai: create poll request: %w", err)
	}
	req.Header.Set("Authorization", p.apiKey)

	var st transcriptStatus
	if err := p.doJSON(req, &st); err != nil {
		return transcriptStatus{}, fmt.Errorf("assemblyai: poll transcript: %w", err)
	}
	return st, nil
}

// doJSON executes req and decodes the JSON response into out.
func (p *Provider) doJSON(req *http.Request, out any) error {
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned HTTP %d: %s", resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

// ── Streaming ──────────────────────────────────────────────────────────────────

// StartStream opens a v3 realtime session. It dials the WebSocket endpoint
// and then waits for the server's Begin message before returning, so the
// returned handle is only ever ready-to-use. Establishment is bounded by ctx.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.buildStreamURL(cfg)
	if err != nil {
		return nil, fmt.Errorf("assemblyai: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("assemblyai: dial: %w", err)
	}

	// Ready gate: the first server message must be Begin.
	if err := awaitBegin(ctx, conn); err != nil {
		conn.Close(websocket.StatusPolicyViolation, "no session begin")
		return nil, err
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

// buildStreamURL constructs the v3 streaming endpoint URL for cfg.
func (p *Provider) buildStreamURL(cfg stt.StreamConfig) (string, error) {
	u, err := url.Parse(p.streamEndpoint)
	if err != nil {
		return "", err
	}

	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}

	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("encoding", "pcm_s16le")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// awaitBegin reads the first server message and verifies it is a Begin event.
func awaitBegin(ctx context.Context, conn *websocket.Conn) error {
	_, msg, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("assemblyai: await session begin: %w", err)
	}
	var hello struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &hello); err != nil {
		return fmt.Errorf("assemblyai: parse session begin: %w", err)
	}
	if hello.Type != "Begin" {
		return fmt.Errorf("assemblyai: unexpected first message type %q", hello.Type)
	}
	return nil
}

// turnMessage is the JSON shape of a v3 Turn event.
type turnMessage struct {
	Type                string  `json:"type"`
	Transcript          string  `json:"transcript"`
	EndOfTurn           bool    `json:"end_of_turn"`
	TurnIsFormatted     bool    `json:"turn_is_formatted"`
	EndOfTurnConfidence float64 `json:"end_of_turn_confidence"`
}

// session is a live AssemblyAI realtime session. It implements
// stt.SessionHandle.
type session struct {
	conn    *websocket.Conn
	results chan stt.Event
	audio   chan []byte

	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// SendAudio queues a PCM audio chunk for delivery to AssemblyAI.
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

// Close terminates the session cleanly. The Terminate message asks AssemblyAI
// to process any audio still in flight before tearing the socket down.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		_ = s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"Terminate"}`))

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

// writeLoop reads from the audio channel and sends binary messages.
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

// readLoop receives JSON messages and dispatches Turn events to the results
// channel.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.results)

	for {
		_, msg, err := s.conn.Read(ctx)
		if err != nil {
			return
		}

		ev, ok := parseTurnMessage(msg)
		if !ok {
			continue
		}

		select {
		case s.results <- ev:
		case <-s.done:
		}
	}
}

// parseTurnMessage parses a raw v3 server message into an Event. Returns
// (Event, true) for Turn events with text, or (zero, false) for anything that
// should be ignored. A turn with end_of_turn=true is a final result and
// carries the end-of-turn confidence; anything earlier is interim, where
// end_of_turn_confidence is not yet meaningful and the event carries none.
func parseTurnMessage(data []byte) (stt.Event, bool) {
	var turn turnMessage
	if err := json.Unmarshal(data, &turn); err != nil {
		return stt.Event{}, false
	}
	if turn.Type != "Turn" || turn.Transcript == "" {
		return stt.Event{}, false
	}

	ev := stt.Event{Kind: stt.KindInterim, Text: turn.Transcript}
	if turn.EndOfTurn {
		ev.Kind = stt.KindFinal
		ev.Confidence = turn.EndOfTurnConfidence
	}
	return ev, true
}
