// ABOUTME: Event classes and the detector result that gates specialist extraction.
// ABOUTME: The detector is deliberately permissive; false positives cost a no-op extractor run.

package extract

// EventClass is one category of state-changing event the detector can flag.
type EventClass string

const (
	EventHPChange      EventClass = "HP_CHANGE"
	EventEffectApplied EventClass = "EFFECT_APPLIED"
	EventResourceUsage EventClass = "RESOURCE_USAGE"
	EventStateChange   EventClass = "STATE_CHANGE"
)

// KnownEventClasses lists every class the detector may return.
var KnownEventClasses = []EventClass{
	EventHPChange,
	EventEffectApplied,
	EventResourceUsage,
	EventStateChange,
}

// EventDetectionResult is the detector agent's envelope.
type EventDetectionResult struct {
	DetectedEvents []EventClass `json:"detected_events"`
	Confidence     float64      `json:"confidence"`
	Reasoning      string       `json:"reasoning,omitempty"`
}

// Has reports whether the given class was detected.
func (r EventDetectionResult) Has(class EventClass) bool {
	for _, ev := range r.DetectedEvents {
		if ev == class {
			return true
		}
	}
	return false
}
