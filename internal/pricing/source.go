package pricing

import (
	"context"
	"strings"
	"sync"
)

// Source returns the latest price for each requested code it knows. Codes it
// has no quote for are left out of the result.
type Source interface {
	Quotes(ctx context.Context, codes []string) (map[string]float64, error)
}

// StaticSource serves prices held in memory.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewStaticSource(prices map[string]float64) *StaticSource {
	s := &StaticSource{prices: make(map[string]float64, len(prices))}
	for code, price := range prices {
		s.prices[normalize(code)] = price
	}
	return s
}

func (s *StaticSource) Set(code string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[normalize(code)] = price
}

func (s *StaticSource) Quotes(_ context.Context, codes []string) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(codes))
	for _, code := range codes {
		if price, ok := s.prices[normalize(code)]; ok {
			out[code] = price
		}
	}
	return out, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
