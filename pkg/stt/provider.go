// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a remote transcription service (AssemblyAI, Deepgram,
// or OpenAI) and exposes two uniform entry points: a batch call that submits
// complete audio and returns one full result, and a streaming session that
// accepts raw PCM audio frames and emits transcript events as speech
// progresses. Providers without a native streaming API simulate one by
// buffering audio internally and submitting it in fixed-duration chunks.
//
// Implementations must be safe for concurrent use. Multiple sessions may be
// open simultaneously (e.g., one per provider on the same client connection).
package stt

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by SessionHandle.SendAudio after the session
// has been closed. Callers should treat a closed session as a no-op delivery
// target rather than a failure.
var ErrSessionClosed = errors.New("stt: session is closed")

// StreamConfig describes the audio format for a new streaming session.
// All fields must be compatible with what the underlying provider supports.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz (e.g., 16000).
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// providers).
	Channels int

	// Encoding names the PCM encoding of the inbound frames. The only value
	// currently accepted is "linear16"; an empty string means the same.
	Encoding string

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider use its default.
	Language string
}

// SessionHandle represents an open streaming transcription session. It is an
// interface so that test code can provide mock implementations without a live
// provider connection.
//
// Callers must call Close when the session is no longer needed. Failing to do
// so may leak goroutines and network connections inside the provider
// implementation. All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider for
	// transcription. The chunk must match the SampleRate, Channels, and
	// bit-depth agreed in StreamConfig. Calling SendAudio after Close returns
	// ErrSessionClosed.
	SendAudio(chunk []byte) error

	// Results returns a read-only channel of transcript events in the order
	// the provider emitted them. The channel is closed when the session ends.
	Results() <-chan Event

	// Close terminates the session, flushes any buffered audio, and releases
	// all associated resources. After Close returns, the Results channel will
	// be closed. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Name returns the stable provider identifier ("assemblyai", "deepgram",
	// "openai") used in client-facing results and configuration.
	Name() string

	// TranscribeBatch submits complete audio for transcription and blocks
	// until the provider returns a full transcript or fails. The audio slice
	// is not retained after the call returns. mimeType hints the container
	// format of the audio (e.g., "audio/wav").
	TranscribeBatch(ctx context.Context, audio []byte, mimeType string) (BatchResult, error)

	// StartStream opens a new streaming transcription session. The returned
	// SessionHandle is ready to accept audio immediately. Implementations
	// must honour ctx cancellation and deadlines during establishment; the
	// caller bounds establishment time via the context.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
