package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/triscribe/triscribe/internal/observe"
	"github.com/triscribe/triscribe/pkg/stt"
)

// establishTimeout bounds how long a single provider session may take to
// become ready.
const establishTimeout = 10 * time.Second

// ErrNoSessions is returned by [Relay.Start] when not a single requested
// provider produced a ready session.
var ErrNoSessions = errors.New("relay: no provider sessions established")

// ResultSink receives one normalized transcript. latency is the time between
// the last forwarded audio frame and the result's arrival.
type ResultSink func(provider, text string, isFinal bool, latency time.Duration)

// ErrorSink receives provider-scoped errors that do not affect other
// providers.
type ErrorSink func(provider string, err error)

// Relay owns the provider sessions of one client connection. It establishes
// sessions, fans audio frames out to all of them, pumps their results
// through the normalizer into the result sink, and tears everything down on
// Close.
type Relay struct {
	providers map[string]stt.Provider
	registry  *Registry
	metrics   *observe.Metrics

	onResult ResultSink
	onError  ErrorSink

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a relay over the given provider instances. providers holds
// only vendors with configured credentials; a requested name absent from it
// is silently skipped. Both sinks must be non-nil and safe for concurrent
// calls.
func New(providers map[string]stt.Provider, m *observe.Metrics, onResult ResultSink, onError ErrorSink) *Relay {
	return &Relay{
		providers: providers,
		registry:  NewRegistry(),
		metrics:   m,
		onResult:  onResult,
		onError:   onError,
	}
}

// Start establishes one streaming session per requested provider,
// concurrently. Providers without credentials are skipped; a provider whose
// establishment fails is reported through the error sink and skipped — it
// never affects the others. Returns the sorted names of the providers that
// produced a ready session, or [ErrNoSessions] when none did.
func (r *Relay) Start(ctx context.Context, names []string, cfg stt.StreamConfig) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)

	for _, name := range dedupe(names) {
		p, ok := r.providers[name]
		if !ok {
			continue
		}

		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, establishTimeout)
			defer cancel()

			handle, err := p.StartStream(sctx, cfg)
			if err != nil {
				r.metrics.RecordProviderRequest(gctx, name, "stream", "error")
				r.metrics.RecordProviderError(gctx, name, "stream")
				r.onError(name, err)
				return nil
			}

			r.metrics.RecordProviderRequest(gctx, name, "stream", "ok")
			r.metrics.ActiveSessions.Add(gctx, 1)

			sess := NewSession(name, handle)
			r.registry.Add(sess)

			r.wg.Add(1)
			go r.pump(sess)
			return nil
		})
	}
	_ = g.Wait()

	established := r.registry.Providers()
	if len(established) == 0 {
		return nil, ErrNoSessions
	}
	return established, nil
}

// Forward fans one binary audio frame out to every session. Delivery is
// fire-and-forget: a failure for provider P surfaces through the error sink
// and marks P's session errored, but neither stops other sessions nor
// future frames. Frames to already-closed sessions are silent no-ops.
func (r *Relay) Forward(frame []byte) {
	r.metrics.AudioFrames.Add(context.Background(), 1)

	for _, sess := range r.registry.All() {
		err := sess.SendAudio(frame)
		if err == nil || errors.Is(err, stt.ErrSessionClosed) {
			continue
		}
		r.metrics.RecordProviderError(context.Background(), sess.Provider, "stream")
		r.onError(sess.Provider, err)
	}
}

// Providers returns the sorted names of the currently registered sessions.
func (r *Relay) Providers() []string {
	return r.registry.Providers()
}

// Close closes every session and waits for the result pumps to drain.
// Idempotent.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		removed := r.registry.RemoveAll()
		if removed > 0 {
			r.metrics.ActiveSessions.Add(context.Background(), -int64(removed))
		}
		r.wg.Wait()
	})
}

// pump drains one session's events in order, so per-provider result order is
// preserved. It exits when the provider closes its results channel.
func (r *Relay) pump(sess *Session) {
	defer r.wg.Done()

	var norm Normalizer
	for ev := range sess.Results() {
		tr, ok := norm.Normalize(ev)
		if !ok {
			continue
		}
		r.metrics.RecordTranscript(context.Background(), sess.Provider, tr.IsFinal)
		r.onResult(sess.Provider, tr.Text, tr.IsFinal, sess.Latency())
	}
}

// dedupe removes duplicate names while preserving first-seen order.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0:0]
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
