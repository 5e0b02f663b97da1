// Package rng provides deterministic named random streams: the same name
// and base seed always yield the same stream, and differently named streams
// are independent.
package rng

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"

	"timbersim/ports"
)

// StreamProvider implements ports.RNGPort
type StreamProvider struct{}

// NewStreamProvider creates a stream provider
func NewStreamProvider() *StreamProvider {
	return &StreamProvider{}
}

var _ ports.RNGPort = (*StreamProvider)(nil)

// SeededStream derives a child seed from the operation name and base seed
func (p *StreamProvider) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if name == "" {
		return nil, fmt.Errorf("stream name cannot be empty")
	}
	return rand.New(rand.NewSource(childSeed(name, seed))), nil
}

// childSeed mixes the stream name into the base seed with FNV-1a
func childSeed(name string, seed int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return seed ^ int64(h.Sum64())
}
