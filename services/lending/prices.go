package lending

import (
	"fmt"
	"sync"

	"lendcore/crypto"
	nativelending "lendcore/native/lending"
)

// PriceBook is an in-process price source fed by oracle submissions. The
// engine samples it through nativelending.PriceSource and validates every
// observation itself.
type PriceBook struct {
	mu     sync.RWMutex
	prices map[string]int64
}

// NewPriceBook constructs an empty book.
func NewPriceBook() *PriceBook {
	return &PriceBook{prices: make(map[string]int64)}
}

func priceKey(oracle crypto.Address, asset string) string {
	return oracle.String() + "/" + nativelending.NormalizeSymbol(asset)
}

// Submit records the latest raw sample published by oracle for asset.
func (b *PriceBook) Submit(oracle crypto.Address, asset string, price int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prices[priceKey(oracle, asset)] = price
}

// Price implements nativelending.PriceSource.
func (b *PriceBook) Price(oracle crypto.Address, asset string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	price, ok := b.prices[priceKey(oracle, asset)]
	if !ok {
		return 0, fmt.Errorf("price book: no sample for %s from %s", nativelending.NormalizeSymbol(asset), oracle.String())
	}
	return price, nil
}
