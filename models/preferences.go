package models

import "strings"

// TransitionStyle selects the visual handoff between items. The duration
// table lives with the slideshow controller; this is just the key.
type TransitionStyle string

const (
	TransitionFade  TransitionStyle = "fade"
	TransitionSlide TransitionStyle = "slide"
	TransitionZoom  TransitionStyle = "zoom"
	TransitionNone  TransitionStyle = "none"
)

// IsValid reports whether s is a known transition style.
func (s TransitionStyle) IsValid() bool {
	switch s {
	case TransitionFade, TransitionSlide, TransitionZoom, TransitionNone:
		return true
	}
	return false
}

const (
	// MinIntervalSeconds and MaxIntervalSeconds bound the slideshow
	// interval preference.
	MinIntervalSeconds = 2
	MaxIntervalSeconds = 300
)

// Preferences are the per-user slideshow settings. The core treats a
// Preferences value as an immutable snapshot.
type Preferences struct {
	Channels        []string        `json:"channels"`
	IntervalSeconds int             `json:"intervalSeconds"`
	Transition      TransitionStyle `json:"transition"`
	Instruction     string          `json:"instruction"`
	CaptionsEnabled bool            `json:"captionsEnabled"`
}

// DefaultPreferences returns the settings applied to a user with no
// stored overrides.
func DefaultPreferences() Preferences {
	return Preferences{
		Channels:        []string{"pics"},
		IntervalSeconds: 10,
		Transition:      TransitionFade,
		Instruction:     "Write one short, vivid sentence describing this media post.",
		CaptionsEnabled: true,
	}
}

// Normalize clamps the interval into range, drops empty channel names and
// falls back to defaults for missing fields. It never returns an error;
// bad preference input degrades to something displayable.
func (p Preferences) Normalize() Preferences {
	defaults := DefaultPreferences()

	channels := make([]string, 0, len(p.Channels))
	for _, c := range p.Channels {
		c = strings.TrimSpace(c)
		if c != "" {
			channels = append(channels, c)
		}
	}
	if len(channels) == 0 {
		channels = defaults.Channels
	}
	p.Channels = channels

	// Zero means "not set" and inherits the default; anything else is
	// clamped into range.
	if p.IntervalSeconds == 0 {
		p.IntervalSeconds = defaults.IntervalSeconds
	}
	if p.IntervalSeconds < MinIntervalSeconds {
		p.IntervalSeconds = MinIntervalSeconds
	}
	if p.IntervalSeconds > MaxIntervalSeconds {
		p.IntervalSeconds = MaxIntervalSeconds
	}

	if !p.Transition.IsValid() {
		p.Transition = defaults.Transition
	}
	if strings.TrimSpace(p.Instruction) == "" {
		p.Instruction = defaults.Instruction
	}
	return p
}
