package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/ir"
	"github.com/roach88/derive/internal/record"
)

func TestSequence_StartsAtZero(t *testing.T) {
	seq := NewSequence("batch")
	assert.Equal(t, int64(0), seq.Current())
}

func TestSequence_NextIncrementsMonotonically(t *testing.T) {
	seq := NewSequence("batch")

	assert.Equal(t, "batch-1", seq.Next())
	assert.Equal(t, "batch-2", seq.Next())
	assert.Equal(t, "batch-3", seq.Generate())
	assert.Equal(t, int64(3), seq.Current())
}

func TestSequence_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "seq-1", NewSequence("").Next())
}

func TestSequence_Reset(t *testing.T) {
	seq := NewSequence("gen")
	seq.Next()
	seq.Next()

	seq.Reset()
	assert.Equal(t, int64(0), seq.Current())
	assert.Equal(t, "gen-1", seq.Next())
}

func TestSequence_ThreadSafe(t *testing.T) {
	seq := NewSequence("t")
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make([][]string, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		results[i] = make([]string, callsPerGoroutine)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				results[idx][j] = seq.Next()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, row := range results {
		for _, tok := range row {
			require.False(t, seen[tok], "duplicate token %s", tok)
			seen[tok] = true
		}
	}
	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
}

func TestSequence_DrivesStoreAndEngine(t *testing.T) {
	var _ engine.BatchGenerator = NewSequence("batch")

	ids := NewSequence("gen")
	s, err := record.NewStore([]ir.ModelSpec{{Name: "note"}}, record.WithIDGenerator(ids.Next))
	require.NoError(t, err)

	rec, err := s.Create("note", nil)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", rec.ID())

	rec, err = s.Create("note", map[string]any{"id": "fixed"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", rec.ID())
	assert.Equal(t, int64(1), ids.Current(), "explicit ids do not consume the sequence")
}
