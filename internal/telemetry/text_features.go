package telemetry

import (
	"context"
	"strings"
	"unicode/utf8"
)

// EmitTextFeatures records size features of a prompt or model answer
// under the given kind ("prompt", "forecast_text", ...). No payload text
// is ever emitted, only counts.
func EmitTextFeatures(ctx context.Context, kind, text string) {
	if !ObserveEnabled() {
		return
	}
	turnID, _ := TurnIDFromContext(ctx)
	lines := 0
	if text != "" {
		lines = 1 + strings.Count(text, "\n")
	}
	Emit("text_features", map[string]any{
		"turn_id":          turnID,
		"features_version": "1",
		"kind":             kind,
		"bytes":            len(text),
		"runes":            utf8.RuneCountInString(text),
		"words":            len(strings.Fields(text)),
		"lines":            lines,
	})
}
