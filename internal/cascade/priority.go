package cascade

// Priority orders handlers. Higher priorities are tried first; only the
// relative order of the constants matters.
type Priority float64

// The priority ladder.
const (
	Critical Priority = 100
	Stage    Priority = 10

	// StrongIntent is for intents that override a multi-turn stage, like
	// "cancel".
	StrongIntent Priority = 5

	// WeakStage is for stages of multi-turn scenarios that are easily left.
	WeakStage Priority = 3
	Checker   Priority = 2

	// IntentPlus ranks local intents above platform-native ones.
	IntentPlus     Priority = 1.1
	Intent         Priority = 1
	IntentMinus    Priority = 0.9
	FAQ            Priority = 0.1
	FindAnything   Priority = 0.05
	BeforeFallback Priority = 0.03
	Fallback       Priority = 0.01
)

var priorityNames = map[string]Priority{
	"critical":        Critical,
	"stage":           Stage,
	"strong_intent":   StrongIntent,
	"weak_stage":      WeakStage,
	"checker":         Checker,
	"intent_plus":     IntentPlus,
	"intent":          Intent,
	"intent_minus":    IntentMinus,
	"faq":             FAQ,
	"find_anything":   FindAnything,
	"before_fallback": BeforeFallback,
	"fallback":        Fallback,
}

// ParsePriority maps a ladder name such as "strong_intent" to its priority.
func ParsePriority(name string) (Priority, bool) {
	p, ok := priorityNames[name]
	return p, ok
}
