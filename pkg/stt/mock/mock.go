// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig or submits the expected batch audio. Use Session to feed
// controlled Event values and inspect which audio chunks were delivered.
//
// Example:
//
//	sess := &mock.Session{ResultsCh: make(chan stt.Event, 1)}
//	p := &mock.Provider{ProviderName: "deepgram", Session: sess}
//	handle, _ := p.StartStream(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/triscribe/triscribe/pkg/stt"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// TranscribeBatchCall records a single invocation of Provider.TranscribeBatch.
type TranscribeBatchCall struct {
	// Audio is a copy of the bytes passed to TranscribeBatch.
	Audio []byte
	// MimeType is the mime hint passed to TranscribeBatch.
	MimeType string
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Session is the SessionHandle returned by StartStream. If nil,
	// StartStream returns a new default Session with a buffered channel.
	Session stt.SessionHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamFunc, if non-nil, replaces the default StartStream behaviour
	// entirely (calls are still recorded). Useful for blocking or
	// context-sensitive establishment in timeout tests.
	StartStreamFunc func(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error)

	// BatchResult is returned by TranscribeBatch when BatchErr is nil.
	BatchResult stt.BatchResult

	// BatchErr, if non-nil, is returned as the error from TranscribeBatch.
	BatchErr error

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall

	// TranscribeBatchCalls records every call to TranscribeBatch.
	TranscribeBatchCalls []TranscribeBatchCall
}

// Name returns ProviderName, or "mock" when unset.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// TranscribeBatch records the call and returns BatchResult, BatchErr.
func (p *Provider) TranscribeBatch(_ context.Context, audio []byte, mimeType string) (stt.BatchResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(audio))
	copy(cp, audio)
	p.TranscribeBatchCalls = append(p.TranscribeBatchCalls, TranscribeBatchCall{Audio: cp, MimeType: mimeType})
	if p.BatchErr != nil {
		return stt.BatchResult{}, p.BatchErr
	}
	return p.BatchResult, nil
}

// StartStream records the call and returns Session, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	fn := p.StartStreamFunc
	p.mu.Unlock()
	if fn != nil {
		return fn(ctx, cfg)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{ResultsCh: make(chan stt.Event, 16)}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
	p.TranscribeBatchCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of stt.SessionHandle.
// Callers should pre-populate ResultsCh with the Event values they want the
// consumer to receive, then close it when done.
type Session struct {
	mu sync.Mutex

	// ResultsCh is the channel returned by Results(). Callers own this
	// channel and are responsible for sending to and closing it in tests.
	ResultsCh chan stt.Event

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// CloseOnce, when true, closes ResultsCh on the first Close call.
	CloseOnce bool

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Results returns ResultsCh. The caller must have initialised ResultsCh
// before calling this method.
func (s *Session) Results() <-chan stt.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResultsCh
}

// Close records the call and returns CloseErr. When CloseOnce is set the
// first call also closes ResultsCh.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if s.CloseOnce && s.CloseCallCount == 1 && s.ResultsCh != nil {
		close(s.ResultsCh)
	}
	return s.CloseErr
}

// CloseCount returns the number of Close calls. Thread-safe.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.CloseCallCount = 0
}

// Ensure Session implements stt.SessionHandle at compile time.
var _ stt.SessionHandle = (*Session)(nil)
