// Package relay fans client audio out to concurrent provider transcription
// sessions and normalizes their events into a single transcript shape. It
// also provides the batch fan-out used by the upload endpoint.
package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/triscribe/triscribe/pkg/stt"
)

// State is the lifecycle state of a provider session.
type State string

const (
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateClosed     State = "closed"
	StateErrored    State = "errored"
)

// Session wraps a live provider stream with the bookkeeping the relay needs:
// the provider name, lifecycle state, and the time of the last forwarded
// audio frame (used to report per-result latency).
type Session struct {
	Provider string

	handle stt.SessionHandle

	mu        sync.Mutex
	state     State
	lastAudio time.Time
}

// NewSession wraps an established provider stream.
func NewSession(provider string, handle stt.SessionHandle) *Session {
	return &Session{
		Provider: provider,
		handle:   handle,
		state:    StateConnected,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SendAudio forwards one PCM frame to the provider and stamps the last-audio
// time. An errored or closed session reports stt.ErrSessionClosed without
// touching the underlying handle; any other delivery failure marks the
// session errored. Errored sessions stay registered as no-op targets.
func (s *Session) SendAudio(frame []byte) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return stt.ErrSessionClosed
	}
	s.lastAudio = time.Now()
	s.mu.Unlock()

	err := s.handle.SendAudio(frame)
	if err == nil {
		return nil
	}
	if errors.Is(err, stt.ErrSessionClosed) {
		return err
	}

	s.mu.Lock()
	s.state = StateErrored
	s.mu.Unlock()
	return err
}

// Latency returns the time elapsed since the last forwarded audio frame.
// Returns 0 when no audio has been forwarded yet.
func (s *Session) Latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAudio.IsZero() {
		return 0
	}
	return time.Since(s.lastAudio)
}

// Results exposes the provider's event channel.
func (s *Session) Results() <-chan stt.Event {
	return s.handle.Results()
}

// Close closes the underlying provider stream and marks the session closed.
func (s *Session) Close() error {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	return s.handle.Close()
}
