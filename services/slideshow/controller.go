package slideshow

import (
	"slices"
	"sync"
	"time"

	"slideflow/models"
)

// Phase is where the controller stands in a transition.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseExiting  Phase = "exiting"
	PhaseEntering Phase = "entering"
)

// Direction of a transition.
type Direction string

const (
	DirectionNext     Direction = "next"
	DirectionPrevious Direction = "previous"
)

// State is a consistent snapshot of the controller, safe to serialize.
type State struct {
	Position       int                    `json:"position"`
	PlaylistLength int                    `json:"playlistLength"`
	HasCurrent     bool                   `json:"hasCurrent"`
	Current        *models.MediaItem      `json:"current,omitempty"`
	Phase          Phase                  `json:"phase"`
	Direction      Direction              `json:"direction,omitempty"`
	Paused         bool                   `json:"paused"`
	Interval       time.Duration          `json:"-"`
	IntervalSecs   int                    `json:"intervalSeconds"`
	Style          models.TransitionStyle `json:"transition"`
	Durations      PhaseDurations         `json:"durations"`
}

// Controller owns the slideshow position and the transition phase. All
// position mutations happen here and only here: once per transition at the
// exiting->entering boundary, or as a non-animated clamp when the playlist
// changes. At most one transition is ever in flight.
type Controller struct {
	mu sync.Mutex

	items    []models.MediaItem
	position int

	phase     Phase
	direction Direction

	interval time.Duration
	style    models.TransitionStyle
	paused   bool
	closed   bool

	// advanceGen invalidates pending auto-advance timers; phaseGen only
	// changes on Close so an in-flight transition always completes.
	advanceGen   uint64
	phaseGen     uint64
	advanceTimer *time.Timer

	listeners []func(models.MediaItem)
}

// NewController creates an idle controller with the given interval and
// transition style.
func NewController(interval time.Duration, style models.TransitionStyle) *Controller {
	if !style.IsValid() {
		style = models.TransitionFade
	}
	return &Controller{
		phase:    PhaseIdle,
		interval: interval,
		style:    style,
	}
}

// Subscribe registers fn to be called whenever the current item changes.
// The callback runs outside the controller lock; it may call back into the
// controller.
func (c *Controller) Subscribe(fn func(models.MediaItem)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Position:       c.position,
		PlaylistLength: len(c.items),
		HasCurrent:     len(c.items) > 0,
		Phase:          c.phase,
		Direction:      c.direction,
		Paused:         c.paused,
		Interval:       c.interval,
		IntervalSecs:   int(c.interval / time.Second),
		Style:          c.style,
		Durations:      Durations(c.style),
	}
	if s.HasCurrent {
		item := c.items[c.position]
		s.Current = &item
	}
	return s
}

// Current returns the currently visible item, if any.
func (c *Controller) Current() (models.MediaItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) == 0 {
		return models.MediaItem{}, false
	}
	return c.items[c.position], true
}

// Next starts a forward transition. Silently rejected mid-transition or
// with fewer than two items; that is an expected condition, not an error.
// Manual navigation works while paused.
func (c *Controller) Next() {
	c.beginTransition(DirectionNext, false, 0)
}

// Previous starts a backward transition under the same rules as Next.
func (c *Controller) Previous() {
	c.beginTransition(DirectionPrevious, false, 0)
}

// Pause stops auto-advance. An in-flight transition is allowed to finish;
// the controller then stays idle.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	c.cancelAdvanceLocked()
}

// Resume re-enables auto-advance, measured from now.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	if c.phase == PhaseIdle {
		c.scheduleAdvanceLocked()
	}
}

// Paused reports whether auto-advance is paused.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Configure updates the interval and transition style live. Position is
// not reset and no transition is forced. A pending auto-advance is
// rescheduled against the new interval.
func (c *Controller) Configure(interval time.Duration, style models.TransitionStyle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = interval
	if style.IsValid() {
		c.style = style
	}
	if c.phase == PhaseIdle {
		c.cancelAdvanceLocked()
		c.scheduleAdvanceLocked()
	}
}

// SetPlaylist replaces the playlist. An out-of-range position is clamped
// without animating; subscribers are notified if the visible item changed.
func (c *Controller) SetPlaylist(items []models.MediaItem) {
	c.mu.Lock()

	var beforeID string
	if len(c.items) > 0 {
		beforeID = c.items[c.position].ID
	}

	c.items = append([]models.MediaItem(nil), items...)
	if len(c.items) == 0 {
		c.position = 0
	} else if c.position >= len(c.items) {
		c.position = len(c.items) - 1
	}

	var current models.MediaItem
	changed := false
	if len(c.items) > 0 && c.items[c.position].ID != beforeID {
		current = c.items[c.position]
		changed = true
	}

	if c.phase == PhaseIdle {
		c.cancelAdvanceLocked()
		c.scheduleAdvanceLocked()
	}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	if changed {
		notify(listeners, current)
	}
}

// Close tears the controller down, cancelling every pending timer.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.phaseGen++
	c.cancelAdvanceLocked()
}

// beginTransition runs the full transition protocol for one direction.
// Auto-advance firings carry the generation they were armed with and are
// additionally rejected when stale or paused; checking inside the same
// critical section closes the window between the timer firing and a
// concurrent Pause.
func (c *Controller) beginTransition(dir Direction, auto bool, gen uint64) {
	c.mu.Lock()
	if auto && (gen != c.advanceGen || c.paused) {
		c.mu.Unlock()
		return
	}
	if c.closed || c.phase != PhaseIdle || len(c.items) < 2 {
		c.mu.Unlock()
		return
	}

	c.phase = PhaseExiting
	c.direction = dir
	c.cancelAdvanceLocked()

	durations := Durations(c.style)
	phaseGen := c.phaseGen
	c.mu.Unlock()

	schedulePhase(durations.Exit, func() {
		c.commitPosition(dir, durations, phaseGen)
	})
}

// commitPosition is the exiting->entering boundary: the single point where
// Position changes during a transition.
func (c *Controller) commitPosition(dir Direction, durations PhaseDurations, gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.phaseGen {
		c.mu.Unlock()
		return
	}

	// The playlist may have been replaced mid-transition; the target is
	// computed against the list as it stands at commit time so the index
	// always lands in range.
	length := len(c.items)
	if length > 0 {
		switch dir {
		case DirectionNext:
			c.position = (c.position + 1) % length
		case DirectionPrevious:
			c.position = (c.position - 1 + length) % length
		}
	}
	c.phase = PhaseEntering

	var current models.MediaItem
	hasCurrent := length > 0
	if hasCurrent {
		current = c.items[c.position]
	}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	if hasCurrent {
		notify(listeners, current)
	}

	schedulePhase(durations.Enter, func() {
		c.finishTransition(gen)
	})
}

// finishTransition returns to idle and schedules the next auto-advance
// relative to this completion, not the original tick.
func (c *Controller) finishTransition(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.phaseGen {
		return
	}
	c.phase = PhaseIdle
	c.direction = ""
	c.scheduleAdvanceLocked()
}

// schedulePhase runs fn after d. Zero-duration phases run inline so the
// "none" style commits synchronously.
func schedulePhase(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	time.AfterFunc(d, fn)
}

// scheduleAdvanceLocked arms the auto-advance timer when eligible: idle,
// not paused, at least two items, positive interval.
func (c *Controller) scheduleAdvanceLocked() {
	if c.closed || c.paused || c.phase != PhaseIdle || len(c.items) < 2 || c.interval <= 0 {
		return
	}
	c.advanceGen++
	gen := c.advanceGen
	c.advanceTimer = time.AfterFunc(c.interval, func() {
		c.beginTransition(DirectionNext, true, gen)
	})
}

// cancelAdvanceLocked invalidates and stops any pending auto-advance.
func (c *Controller) cancelAdvanceLocked() {
	c.advanceGen++
	if c.advanceTimer != nil {
		c.advanceTimer.Stop()
		c.advanceTimer = nil
	}
}

func (c *Controller) listenersLocked() []func(models.MediaItem) {
	return slices.Clone(c.listeners)
}

func notify(listeners []func(models.MediaItem), item models.MediaItem) {
	for _, fn := range listeners {
		fn(item)
	}
}
