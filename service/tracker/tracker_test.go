package tracker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackAndResolve(t *testing.T) {
	tr := New()

	tr.Track("ws_CO_one")
	tr.Track("ws_CO_two")
	assert.Equal(t, 2, tr.Len())
	assert.True(t, tr.Tracked("ws_CO_one"))

	// Tracking the same id again keeps the original entry.
	tr.Bump("ws_CO_one")
	tr.Track("ws_CO_one")
	assert.Equal(t, 2, tr.Bump("ws_CO_one"))

	tr.Resolve("ws_CO_one")
	assert.False(t, tr.Tracked("ws_CO_one"))
	assert.Equal(t, 1, tr.Len())

	// Resolving an unknown id is a no-op.
	tr.Resolve("ws_CO_unknown")
	assert.Equal(t, 1, tr.Len())
}

func TestBumpUntracked(t *testing.T) {
	tr := New()
	assert.Zero(t, tr.Bump("ws_CO_missing"))
	assert.False(t, tr.Tracked("ws_CO_missing"))
}

func TestReapOlderThan(t *testing.T) {
	tr := New()
	tr.Track("ws_CO_old")
	tr.entries["ws_CO_old"].TrackedAt = time.Now().Add(-2 * time.Hour)
	tr.Track("ws_CO_fresh")

	reaped := tr.ReapOlderThan(time.Now().Add(-time.Hour))
	assert.Equal(t, []string{"ws_CO_old"}, reaped)
	assert.False(t, tr.Tracked("ws_CO_old"))
	assert.True(t, tr.Tracked("ws_CO_fresh"))

	assert.Empty(t, tr.ReapOlderThan(time.Now().Add(-time.Hour)))
}

func TestConcurrentAccess(t *testing.T) {
	tr := New()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("ws_CO_%d", i)
			tr.Track(id)
			tr.Bump(id)
			if i%2 == 0 {
				tr.Resolve(id)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, tr.Len())
}
