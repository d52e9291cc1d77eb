package reconcile

import (
	"context"
	"sync"

	"github.com/ppiankov/flagspan/internal/model"
	"github.com/ppiankov/flagspan/internal/sanitize"
)

// ReconcileConcurrent resolves flags in parallel, bounded by the configured
// worker count. Results keep input order. Flags not started before ctx is
// cancelled resolve to the fallback span instead of failing.
func (r *Reconciler) ReconcileConcurrent(ctx context.Context, canonical string, flags []model.FlagCandidate) []model.ResolvedFlag {
	if r.workers <= 1 || len(flags) < 2 {
		return r.Reconcile(canonical, flags)
	}

	doc := newDocument(canonical)
	results := make([]model.ResolvedFlag, len(flags))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, r.workers)

	for i, f := range flags {
		wg.Add(1)
		go func(idx int, flag model.FlagCandidate) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = fallback(doc, flag)
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = r.resolve(doc, flag)
		}(i, f)
	}

	wg.Wait()
	return results
}

// fallback resolves a flag to the leading span without running the cascade
func fallback(doc *document, flag model.FlagCandidate) model.ResolvedFlag {
	claimed := sanitize.Sanitize(flag.ClaimedText)
	end := min(newDocument(claimed).runeLen(), doc.runeLen())
	bs, be, text := doc.span(0, end)

	return model.ResolvedFlag{
		FlagCandidate:      flag,
		ResolvedStartIndex: bs,
		ResolvedEndIndex:   be,
		ResolvedText:       text,
		MatchStrategy:      model.StrategyFallback,
		AdjustedConfidence: adjustConfidence(flag.Confidence, text, claimed),
	}
}
