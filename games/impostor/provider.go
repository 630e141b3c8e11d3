/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

import (
	"context"
	"math/rand/v2"
	"time"
)

// DefaultFetchDelay is how long the catalog provider pauses before answering,
// so that the group gets a moment of suspense while the word is chosen.
const DefaultFetchDelay = 800 * time.Millisecond

// WordProvider supplies the secret word for a new round.
type WordProvider interface {
	FetchWord(ctx context.Context) (WordEntry, error)
}

// ProviderFunc adapts an ordinary function to the WordProvider interface.
type ProviderFunc func(ctx context.Context) (WordEntry, error)

func (f ProviderFunc) FetchWord(ctx context.Context) (WordEntry, error) {
	return f(ctx)
}

// CatalogProvider draws uniformly from a static catalog after a fixed delay.
type CatalogProvider struct {
	Catalog Catalog
	Delay   time.Duration
	Picker  Picker
}

func NewCatalogProvider(catalog Catalog, delay time.Duration) *CatalogProvider {
	return &CatalogProvider{
		Catalog: catalog,
		Delay:   delay,
		Picker:  rand.IntN,
	}
}

func (p *CatalogProvider) FetchWord(ctx context.Context) (WordEntry, error) {
	if len(p.Catalog) == 0 {
		return WordEntry{}, ErrEmptyCatalog
	}

	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return WordEntry{}, ctx.Err()
		case <-timer.C:
		}
	}

	pick := p.Picker
	if pick == nil {
		pick = rand.IntN
	}

	return p.Catalog[pick(len(p.Catalog))], nil
}
