package pricefeed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"solTradeBot/internal/ports"
)

// Simulator synthesises prices as a bounded random walk around the last real quote.
type Simulator struct {
	mu      sync.Mutex
	rnd     *rand.Rand
	step    float64 // Max relative move per call
	band    float64 // Max relative distance from the anchor
	anchors map[string]float64
	last    map[string]float64
}

// NewSimulator creates a simulator. step and band are fractions, e.g. 0.02 and 0.5.
func NewSimulator(seed int64, step, band float64) *Simulator {
	return &Simulator{
		rnd:     rand.New(rand.NewSource(seed)),
		step:    step,
		band:    band,
		anchors: make(map[string]float64),
		last:    make(map[string]float64),
	}
}

// Anchor records a real price for token and restarts the walk from it.
func (s *Simulator) Anchor(token string, price float64) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[token] = price
	s.last[token] = price
}

// Price moves the walk one step. Tokens never anchored have no price.
func (s *Simulator) Price(_ context.Context, token string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anchor, ok := s.anchors[token]
	if !ok {
		return 0, fmt.Errorf("no simulation anchor for %s: %w", token, ports.ErrPriceUnavailable)
	}
	price := s.last[token] * (1 + (s.rnd.Float64()*2-1)*s.step)
	lo, hi := anchor*(1-s.band), anchor*(1+s.band)
	if price < lo {
		price = lo
	}
	if price > hi {
		price = hi
	}
	s.last[token] = price
	return price, nil
}
