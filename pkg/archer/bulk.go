package archer

import (
	"context"
	"sync"

	"github.com/sw33tLie/archerlookup/pkg/entity"
	"golang.org/x/sync/errgroup"
)

// DoLookup enriches every entity. Blocked or disabled entities produce a
// placeholder with nil Data and are never sent to Archer. Admitted entities
// are looked up concurrently, so results are not in input order. If any
// lookup fails the whole batch fails with that error.
func (i *Integration) DoLookup(ctx context.Context, entities []entity.Entity, opts Options) ([]LookupResult, error) {
	i.log.WithField("entities", len(entities)).Trace("starting lookup")

	i.blocklist.Update(opts)

	var mu sync.Mutex
	results := make([]LookupResult, 0, len(entities))
	add := func(r LookupResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for _, e := range entities {
		if i.blocklist.IsBlocked(e) || !opts.lookupEnabled(e) {
			add(LookupResult{Entity: e})
			continue
		}

		g.Go(func() error {
			r, err := i.lookupEntity(gctx, e, opts)
			if err != nil {
				return err
			}
			i.log.WithField("entity", e.Value).Debug("Result pushed")
			add(r)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if i.recorder != nil {
		if err := i.recorder.RecordLookups(ctx, results); err != nil {
			i.log.WithError(err).Warn("Could not record lookup results")
		}
	}

	i.log.WithField("results", len(results)).Debug("Result Values")
	return results, nil
}
