package slideshow

import (
	"encoding/json"
	"time"

	"slideflow/models"
)

// PhaseDurations is the canonical exit/enter timing for one transition
// style. The controller and any renderer must agree on this table; it is
// exposed through the API for that reason.
type PhaseDurations struct {
	Exit  time.Duration
	Enter time.Duration
}

type phaseDurationsJSON struct {
	ExitMs  int64 `json:"exitMs"`
	EnterMs int64 `json:"enterMs"`
}

// MarshalJSON emits integer milliseconds. Renderers time their animations
// from these keys, so the unit must match the name.
func (d PhaseDurations) MarshalJSON() ([]byte, error) {
	return json.Marshal(phaseDurationsJSON{
		ExitMs:  d.Exit.Milliseconds(),
		EnterMs: d.Enter.Milliseconds(),
	})
}

// UnmarshalJSON mirrors MarshalJSON.
func (d *PhaseDurations) UnmarshalJSON(data []byte) error {
	var raw phaseDurationsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Exit = time.Duration(raw.ExitMs) * time.Millisecond
	d.Enter = time.Duration(raw.EnterMs) * time.Millisecond
	return nil
}

var styleDurations = map[models.TransitionStyle]PhaseDurations{
	models.TransitionFade:  {Exit: 400 * time.Millisecond, Enter: 400 * time.Millisecond},
	models.TransitionSlide: {Exit: 300 * time.Millisecond, Enter: 300 * time.Millisecond},
	models.TransitionZoom:  {Exit: 500 * time.Millisecond, Enter: 500 * time.Millisecond},
	models.TransitionNone:  {},
}

// Durations returns the canonical phase timings for a style. Unknown
// styles fall back to fade rather than guessing a new number.
func Durations(style models.TransitionStyle) PhaseDurations {
	if d, ok := styleDurations[style]; ok {
		return d
	}
	return styleDurations[models.TransitionFade]
}
