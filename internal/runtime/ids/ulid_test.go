package ids

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateULIDIncreases(t *testing.T) {
	generated := make([]string, 200)
	for i := range generated {
		generated[i] = CreateULID()
	}

	for _, id := range generated {
		require.Len(t, id, ulid.EncodedSize)
		_, err := ulid.ParseStrict(id)
		require.NoError(t, err)
	}
	assert.True(t, slices.IsSorted(generated))
	assert.Len(t, slices.Compact(slices.Clone(generated)), len(generated))
}

func TestCreateULIDConcurrent(t *testing.T) {
	const workers, perWorker = 8, 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				id := CreateULID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestNewConnectionID(t *testing.T) {
	id := NewConnectionID()
	assert.Len(t, id, len(ConnectionPrefix)+ulid.EncodedSize)
	assert.Equal(t, ConnectionPrefix, id[:len(ConnectionPrefix)])

	created, ok := Time(id)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), created, time.Minute)
}

func TestTime(t *testing.T) {
	created, ok := Time(CreateULID())
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), created, time.Minute)

	_, ok = Time("conn_not-a-ulid")
	assert.False(t, ok)
	_, ok = Time("")
	assert.False(t, ok)
}
