package slideshow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slideflow/models"
)

func playlist(ids ...string) []models.MediaItem {
	items := make([]models.MediaItem, len(ids))
	for i, id := range ids {
		items[i] = models.MediaItem{ID: id, Title: "item " + id, Kind: models.MediaKindImage}
	}
	return items
}

// newNoneController uses the zero-duration "none" style so transitions
// commit synchronously and tests stay deterministic.
func newNoneController(interval time.Duration, ids ...string) *Controller {
	c := NewController(interval, models.TransitionNone)
	c.SetPlaylist(playlist(ids...))
	return c
}

func TestWrapAround(t *testing.T) {
	c := newNoneController(0, "a", "b", "c")
	defer c.Close()

	c.Next()
	c.Next()
	require.Equal(t, 2, c.State().Position)

	// manualNext from the last index yields index 0.
	c.Next()
	assert.Equal(t, 0, c.State().Position)

	// manualPrevious from index 0 yields the last index.
	c.Previous()
	assert.Equal(t, 2, c.State().Position)
}

func TestRejectsWithFewerThanTwoItems(t *testing.T) {
	c := newNoneController(0, "only")
	defer c.Close()

	c.Next()
	c.Previous()
	s := c.State()
	assert.Equal(t, 0, s.Position)
	assert.Equal(t, PhaseIdle, s.Phase)
}

func TestEmptyPlaylistHasNoCurrent(t *testing.T) {
	c := NewController(0, models.TransitionNone)
	defer c.Close()

	s := c.State()
	assert.False(t, s.HasCurrent)
	assert.Nil(t, s.Current)

	c.Next() // must not panic or move
	assert.Equal(t, 0, c.State().Position)
}

func TestMutualExclusionDuringTransition(t *testing.T) {
	c := NewController(0, models.TransitionFade)
	defer c.Close()
	c.SetPlaylist(playlist("a", "b", "c"))

	c.Next()
	// Phase is now exiting; further events must be silently rejected.
	c.Next()
	c.Next()
	c.Previous()

	deadline := time.Now().Add(3 * time.Second)
	for c.State().Phase != PhaseIdle {
		require.True(t, time.Now().Before(deadline), "transition never returned to idle")
		time.Sleep(10 * time.Millisecond)
	}

	// Exactly one transition happened.
	assert.Equal(t, 1, c.State().Position)
}

func TestPositionChangesOnlyAtCommit(t *testing.T) {
	c := NewController(0, models.TransitionFade)
	defer c.Close()
	c.SetPlaylist(playlist("a", "b"))

	c.Next()
	s := c.State()
	require.Equal(t, PhaseExiting, s.Phase)
	assert.Equal(t, 0, s.Position, "position must not move during the exit phase")

	d := Durations(models.TransitionFade)
	time.Sleep(d.Exit + d.Exit/2)
	s = c.State()
	assert.Equal(t, 1, s.Position, "position commits at the exiting->entering boundary")
}

func TestPlaylistChangeClampsPosition(t *testing.T) {
	c := newNoneController(0, "a", "b", "c", "d")
	defer c.Close()
	c.Next()
	c.Next()
	c.Next()
	require.Equal(t, 3, c.State().Position)

	c.SetPlaylist(playlist("x", "y"))
	s := c.State()
	assert.Equal(t, 1, s.Position, "position clamps to the last valid index")
	assert.True(t, s.Position < s.PlaylistLength)

	c.SetPlaylist(nil)
	s = c.State()
	assert.False(t, s.HasCurrent)
	assert.Equal(t, 0, s.Position)
}

func TestAutoAdvance(t *testing.T) {
	c := NewController(60*time.Millisecond, models.TransitionNone)
	defer c.Close()
	c.SetPlaylist(playlist("a", "b", "c"))

	deadline := time.Now().Add(3 * time.Second)
	for c.State().Position == 0 {
		require.True(t, time.Now().Before(deadline), "auto-advance never fired")
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPauseHaltsAutoAdvance(t *testing.T) {
	c := NewController(50*time.Millisecond, models.TransitionNone)
	defer c.Close()
	c.SetPlaylist(playlist("a", "b", "c"))
	c.Pause()

	before := c.State().Position
	time.Sleep(200 * time.Millisecond) // well past the interval
	assert.Equal(t, before, c.State().Position, "pause must stop auto-advance")

	// Manual navigation still works while paused.
	c.Next()
	assert.Equal(t, (before+1)%3, c.State().Position)
}

func TestResumeRestartsAutoAdvance(t *testing.T) {
	c := NewController(50*time.Millisecond, models.TransitionNone)
	defer c.Close()
	c.SetPlaylist(playlist("a", "b"))
	c.Pause()
	time.Sleep(120 * time.Millisecond)
	require.Equal(t, 0, c.State().Position)

	c.Resume()
	deadline := time.Now().Add(3 * time.Second)
	for c.State().Position == 0 {
		require.True(t, time.Now().Before(deadline), "auto-advance did not resume")
		time.Sleep(10 * time.Millisecond)
	}
}

func TestConfigureKeepsPosition(t *testing.T) {
	c := newNoneController(0, "a", "b", "c")
	defer c.Close()
	c.Next()
	require.Equal(t, 1, c.State().Position)

	c.Configure(30*time.Second, models.TransitionZoom)
	s := c.State()
	assert.Equal(t, 1, s.Position, "configure must not reset position")
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Equal(t, models.TransitionZoom, s.Style)
}

func TestSubscriberSeesCommitOrder(t *testing.T) {
	c := newNoneController(0, "a", "b", "c")
	defer c.Close()

	var mu sync.Mutex
	var seen []string
	c.Subscribe(func(item models.MediaItem) {
		mu.Lock()
		seen = append(seen, item.ID)
		mu.Unlock()
	})

	c.Next()     // a -> b
	c.Next()     // b -> c
	c.Next()     // c -> a (wrap)
	c.Previous() // a -> c

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"b", "c", "a", "c"}, seen)
}

func TestSubscriberNotifiedOnInitialPlaylist(t *testing.T) {
	c := NewController(0, models.TransitionNone)
	defer c.Close()

	var mu sync.Mutex
	var seen []string
	c.Subscribe(func(item models.MediaItem) {
		mu.Lock()
		seen = append(seen, item.ID)
		mu.Unlock()
	})

	c.SetPlaylist(playlist("first", "second"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1, "undefined -> defined counts as a current-item change")
	assert.Equal(t, "first", seen[0])
}

func TestConcreteScenario_WrapFromLastIndex(t *testing.T) {
	// Playlist = [A, B, C], Position = 2, transition = fade. After
	// manualNext and its exit+enter durations, Position = 0 and the phase
	// is idle again.
	c := NewController(10*time.Second, models.TransitionFade)
	defer c.Close()
	c.SetPlaylist(playlist("A", "B", "C"))

	var mu sync.Mutex
	var seen []string
	c.Subscribe(func(item models.MediaItem) {
		mu.Lock()
		seen = append(seen, item.ID)
		mu.Unlock()
	})

	d := Durations(models.TransitionFade)
	settle := d.Exit + d.Enter + 100*time.Millisecond

	c.Next()
	time.Sleep(settle)
	c.Next()
	time.Sleep(settle)
	require.Equal(t, 2, c.State().Position)

	c.Next()
	time.Sleep(settle)

	s := c.State()
	assert.Equal(t, 0, s.Position)
	assert.Equal(t, PhaseIdle, s.Phase)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, "A", seen[len(seen)-1], "a change notification for item A was delivered")
}

func TestDurationsTable(t *testing.T) {
	assert.Equal(t, time.Duration(0), Durations(models.TransitionNone).Exit)
	assert.NotZero(t, Durations(models.TransitionFade).Exit)
	assert.NotZero(t, Durations(models.TransitionSlide).Enter)
	// Unknown styles fall back to fade.
	assert.Equal(t, Durations(models.TransitionFade), Durations(models.TransitionStyle("wipe")))
}
