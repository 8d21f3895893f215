package background

import (
	"sync"
	"testing"

	"github.com/provideo/provideo/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()

	r.Register(1, nil, types.MediaMetadata{Title: "Movie"})

	entry, ok := r.Get(1)
	assert.True(t, ok)
	assert.Equal(t, int64(1), entry.SessionID)
	assert.Equal(t, "Movie", entry.Metadata.Title)
	assert.True(t, r.Registered(1))
	assert.False(t, r.Registered(2))
}

func TestUpdateMetadata(t *testing.T) {
	r := NewRegistry()
	r.Register(1, nil, types.MediaMetadata{Title: "Old"})

	assert.True(t, r.UpdateMetadata(1, types.MediaMetadata{Title: "New"}))
	entry, _ := r.Get(1)
	assert.Equal(t, "New", entry.Metadata.Title)

	assert.False(t, r.UpdateMetadata(99, types.MediaMetadata{Title: "X"}))
}

func TestUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(1, nil, types.MediaMetadata{})

	assert.True(t, r.Unregister(1))
	assert.False(t, r.Unregister(1))
	assert.Equal(t, 0, r.Len())
}

func TestConcurrentRegistration(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			r.Register(id, nil, types.MediaMetadata{})
			r.UpdateMetadata(id, types.MediaMetadata{Title: "t"})
			_, _ = r.Get(id)
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
	assert.Len(t, r.Snapshot(), 50)
}
