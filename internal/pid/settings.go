package pid

import "fmt"

// Default pairing and linking distances, in PDF units.
const (
	DefaultPairHorizontal   = 10.0
	DefaultPairVertical     = 10.0
	DefaultAutoLinkDistance = 50.0
)

// Tolerance holds per-category distance thresholds. AutoLinkDistance is only
// meaningful for instruments.
type Tolerance struct {
	Horizontal       float64 `json:"horizontal" yaml:"horizontal"`
	Vertical         float64 `json:"vertical" yaml:"vertical"`
	AutoLinkDistance float64 `json:"autoLinkDistance,omitempty" yaml:"autoLinkDistance,omitempty"`
}

// Settings is the fully resolved pattern and tolerance configuration for one
// extraction or linking run.
type Settings struct {
	Patterns   map[Category]PatternSpec `json:"patterns" yaml:"patterns"`
	Tolerances map[Category]Tolerance   `json:"tolerances" yaml:"tolerances"`
}

// DefaultSettings returns the stock patterns used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		Patterns: map[Category]PatternSpec{
			CategoryEquipment:     PlainPattern(`\b[A-Z]{1,3}-[A-Z]{0,3}-?\d{3,5}[A-Z]?\b`),
			CategoryLine:          PlainPattern(`\b\d{1,2}"?-[A-Z]{1,4}-\d{3,5}-[A-Z0-9]{2,6}\b`),
			CategoryInstrument:    FunctionNumberPattern(`\b[A-Z]{2,4}`, `\d{3,5}[A-Z]?\b`, DefaultSeparator),
			CategoryDrawingNumber: PlainPattern(`\b[A-Z0-9]{2,}-[A-Z]{2,}-\d{3,}-\d{2,}\b`),
			CategoryNotesAndHolds: PlainPattern(`\b(?:NOTE|HOLD)\s*\d+\b`),
		},
		Tolerances: map[Category]Tolerance{
			CategoryEquipment:     {Horizontal: 20, Vertical: 20},
			CategoryLine:          {Horizontal: 20, Vertical: 20},
			CategoryInstrument:    {Horizontal: DefaultPairHorizontal, Vertical: DefaultPairVertical, AutoLinkDistance: DefaultAutoLinkDistance},
			CategoryDrawingNumber: {Horizontal: 20, Vertical: 20},
			CategoryNotesAndHolds: {Horizontal: 20, Vertical: 20},
		},
	}
}

// Tolerance returns the configured tolerance for category, falling back to
// the instrument pairing defaults when none is set.
func (s Settings) Tolerance(category Category) Tolerance {
	if t, ok := s.Tolerances[category]; ok && (t.Horizontal > 0 || t.Vertical > 0 || t.AutoLinkDistance > 0) {
		if t.Horizontal <= 0 {
			t.Horizontal = DefaultPairHorizontal
		}
		if t.Vertical <= 0 {
			t.Vertical = DefaultPairVertical
		}
		return t
	}
	return Tolerance{Horizontal: DefaultPairHorizontal, Vertical: DefaultPairVertical}
}

// AutoLinkDistance returns the instrument description radius
func (s Settings) AutoLinkDistance() float64 {
	if t, ok := s.Tolerances[CategoryInstrument]; ok && t.AutoLinkDistance > 0 {
		return t.AutoLinkDistance
	}
	return DefaultAutoLinkDistance
}

// Validate rejects unknown categories and negative tolerances. Broken regular
// expressions are not rejected here; they surface as warnings at match time.
func (s Settings) Validate() error {
	for c := range s.Patterns {
		if !c.Valid() {
			return ValidationError("unknown category %q in patterns", c)
		}
	}
	for c, t := range s.Tolerances {
		if !c.Valid() {
			return ValidationError("unknown category %q in tolerances", c)
		}
		if t.Horizontal < 0 || t.Vertical < 0 || t.AutoLinkDistance < 0 {
			return ValidationError("tolerance for %s must not be negative", c)
		}
	}
	return nil
}

// Clone returns a deep copy of the settings
func (s Settings) Clone() Settings {
	out := Settings{
		Patterns:   make(map[Category]PatternSpec, len(s.Patterns)),
		Tolerances: make(map[Category]Tolerance, len(s.Tolerances)),
	}
	for k, v := range s.Patterns {
		out.Patterns[k] = v
	}
	for k, v := range s.Tolerances {
		out.Tolerances[k] = v
	}
	return out
}

// String returns a short description of the settings
func (s Settings) String() string {
	return fmt.Sprintf("Settings{Patterns: %d, Tolerances: %d, AutoLinkDistance: %.1f}",
		len(s.Patterns), len(s.Tolerances), s.AutoLinkDistance())
}
