// Package testutil holds deterministic generators for tests and scenario
// runs.
package testutil

import (
	"fmt"
	"sync"
)

// Sequence produces "<prefix>-1", "<prefix>-2", ... in order.
//
// It serves both as a record id generator (pass Next to
// record.WithIDGenerator) and as an engine.BatchGenerator. Unlike
// engine.FixedGenerator it never runs out, and it can be reset so the same
// scenario replays with identical ids and batch tokens.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sequence struct {
	mu     sync.Mutex
	prefix string
	n      int64
}

// NewSequence creates a sequence. An empty prefix defaults to "seq".
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "seq"
	}
	return &Sequence{prefix: prefix}
}

// Next advances the sequence and returns the new token.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%s-%d", s.prefix, s.n)
}

// Generate implements engine.BatchGenerator.
func (s *Sequence) Generate() string {
	return s.Next()
}

// Current returns how many tokens have been issued.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset restarts the sequence. The next token is "<prefix>-1" again.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n = 0
}
