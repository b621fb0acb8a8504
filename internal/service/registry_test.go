package service

import (
	"sync"
	"testing"
	"time"

	"github.com/set-night/wondercam/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*SessionRegistry, *int) {
	t.Helper()
	created := 0
	var mu sync.Mutex
	r := NewSessionRegistry(func() Assistant {
		mu.Lock()
		created++
		mu.Unlock()
		return &fakeAssistant{}
	})
	t.Cleanup(r.Shutdown)
	return r, &created
}

func TestRegistryGetOrCreateReusesState(t *testing.T) {
	r, created := newTestRegistry(t)

	a := r.GetOrCreate(1)
	b := r.GetOrCreate(1)
	c := r.GetOrCreate(2)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, *created)
	assert.Equal(t, 2, r.Count())
	assert.Same(t, a, r.Get(1))
	assert.Nil(t, r.Get(3))
}

func TestRegistryConcurrentGetOrCreate(t *testing.T) {
	r, _ := newTestRegistry(t)

	var wg sync.WaitGroup
	states := make([]*ChatState, 20)
	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i] = r.GetOrCreate(42)
		}(i)
	}
	wg.Wait()

	for _, st := range states {
		assert.Same(t, states[0], st)
	}
	assert.Equal(t, 1, r.Count())
}

func TestRegistryDelete(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.GetOrCreate(1)

	r.Delete(1)

	assert.Nil(t, r.Get(1))
	assert.Equal(t, 0, r.Count())
}

func TestRegistryCleanupIdle(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.idleTimeout = time.Hour
	stale := r.GetOrCreate(1)
	r.GetOrCreate(2)
	stale.touch(time.Now().Add(-2 * time.Hour))

	removed := r.cleanupIdle(time.Now())

	assert.Equal(t, 1, removed)
	assert.Nil(t, r.Get(1))
	assert.NotNil(t, r.Get(2))
}

func TestRegistryCleanupSkipsBusyChats(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.idleTimeout = time.Hour
	st := r.GetOrCreate(1)
	st.Machine.StartDirectChat("en")
	st.Machine.inFlight = "turn"
	st.touch(time.Now().Add(-2 * time.Hour))

	removed := r.cleanupIdle(time.Now())

	assert.Equal(t, 0, removed)
	assert.NotNil(t, r.Get(1))
}

func TestRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.maxSessions = 2
	oldest := r.GetOrCreate(1)
	r.GetOrCreate(2)
	oldest.touch(time.Now().Add(-time.Minute))

	r.GetOrCreate(3)

	assert.Equal(t, 2, r.Count())
	assert.Nil(t, r.Get(1))
	assert.NotNil(t, r.Get(2))
	assert.NotNil(t, r.Get(3))
}

func TestChatStateMessageBookkeeping(t *testing.T) {
	r, _ := newTestRegistry(t)
	st := r.GetOrCreate(1)

	st.ResetMessages("100")
	st.RememberImage("101", domain.ImagePayload{Data: "SU1H"})

	assert.True(t, st.IsPhotoMessage("100"))
	assert.False(t, st.IsPhotoMessage(""))
	img, ok := st.Image("101")
	require.True(t, ok)
	assert.Equal(t, "SU1H", img.Data)

	st.ResetMessages("200")
	_, ok = st.Image("101")
	assert.False(t, ok)
	assert.False(t, st.IsPhotoMessage("100"))
}
