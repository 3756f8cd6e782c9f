// Package sym defines the glyphs used by dirjobs log lines and CLI output.
// These symbols are stable across CLI output and documentation.
package sym

// System infrastructure symbols.
const (
	AM         = "≡" // am: configuration and system settings
	Pulse      = "꩜" // background jobs, admission, throttling
	PulseOpen  = "✿" // job admitted and starting
	PulseClose = "❀" // job finished or scheduler shutting down
	DB         = "⊔" // database/storage layer
	Link       = "⇌" // directory connection opened or closed
)

// descriptions maps each glyph to a one-line explanation for `dirjobs am show`.
var descriptions = map[string]string{
	AM:         "Configuration and system settings",
	Pulse:      "Background jobs, admission, throttling",
	PulseOpen:  "Job admitted and starting",
	PulseClose: "Job finished or scheduler shutting down",
	DB:         "Job history storage",
	Link:       "Directory connection opened or closed",
}

// Describe returns the description for a glyph, or "" if unknown.
func Describe(glyph string) string {
	return descriptions[glyph]
}

// All returns every glyph in display order.
func All() []string {
	return []string{AM, Pulse, PulseOpen, PulseClose, DB, Link}
}
