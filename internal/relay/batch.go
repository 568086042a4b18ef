package relay

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/triscribe/triscribe/internal/observe"
	"github.com/triscribe/triscribe/pkg/stt"
)

// BatchOutcome is the per-provider result of a batch fan-out. Exactly one of
// Result and Err is meaningful.
type BatchOutcome struct {
	Result stt.BatchResult
	Err    error
}

// TranscribeAll runs TranscribeBatch on every requested provider
// concurrently and collects the outcomes by provider name. A provider
// without credentials (absent from providers) is skipped and absent from the
// returned map. One provider's failure is captured in its own outcome and
// never cancels the others.
func TranscribeAll(ctx context.Context, providers map[string]stt.Provider, names []string, audio []byte, mimeType string, m *observe.Metrics) map[string]BatchOutcome {
	outcomes := make(map[string]BatchOutcome)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range dedupe(names) {
		p, ok := providers[name]
		if !ok {
			continue
		}

		g.Go(func() error {
			start := time.Now()
			res, err := p.TranscribeBatch(gctx, audio, mimeType)

			status := "ok"
			if err != nil {
				status = "error"
				m.RecordProviderError(gctx, name, "batch")
			}
			m.RecordProviderRequest(gctx, name, "batch", status)
			m.RecordBatchDuration(gctx, name, status, time.Since(start).Seconds())

			mu.Lock()
			outcomes[name] = BatchOutcome{Result: res, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
