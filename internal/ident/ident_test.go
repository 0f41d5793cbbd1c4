package ident

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7_Generate(t *testing.T) {
	var gen UUIDv7

	id := gen.Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, gen.Generate())
}

func TestSequence_Order(t *testing.T) {
	seq := NewSequence("step-")

	assert.Equal(t, "step-0", seq.Generate())
	assert.Equal(t, "step-1", seq.Generate())
	assert.Equal(t, "step-2", seq.Generate())
	assert.Equal(t, int64(3), seq.Count())
}

func TestSequence_ConcurrentUnique(t *testing.T) {
	seq := NewSequence("")

	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- seq.Generate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
