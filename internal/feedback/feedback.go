// Package feedback formats command and trigger outcomes as markdown chat
// entries.
package feedback

import (
	"strings"

	"github.com/ZaguanLabs/corelyn/internal/command"
	"github.com/ZaguanLabs/corelyn/internal/errors"
	"github.com/ZaguanLabs/corelyn/internal/trigger"
)

const (
	successIcon = "✅"
	failureIcon = "❌"

	commandHeader = "🔧 **Tool results:**"
)

// Commands returns the entry for a set of command results. It reports false
// when there is nothing to say.
func Commands(results []command.Result) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	lines := make([]string, len(results))
	for i, r := range results {
		icon := successIcon
		if !r.OK {
			icon = failureIcon
		}
		lines[i] = icon + " **`" + r.Name + "`** — " + r.Message
	}
	return commandHeader + "\n\n" + strings.Join(lines, "\n"), true
}

// Trigger returns the entry for one rule outcome. Only matched rules produce
// an entry.
func Trigger(o trigger.Outcome) (string, bool) {
	if !o.Matched {
		return "", false
	}

	lines := []string{"⚡ **Trigger fired** — matched `" + o.Rule.Match + "`"}
	if o.Rule.Kind.Normalized() == trigger.Regex && o.MatchedText != "" {
		lines = append(lines, "↳ Regex capture: `"+o.MatchedText+"`")
	}

	switch {
	case o.ActionErr != nil:
		lines = append(lines, failureIcon+" Action error: "+actionMessage(o.ActionErr))
	case o.HasPreview:
		lines = append(lines, successIcon+" Action ran successfully → `"+o.Preview+"`")
	default:
		lines = append(lines, successIcon+" Action ran successfully")
	}
	return strings.Join(lines, "\n\n"), true
}

// Triggers returns one entry per matched outcome, in order.
func Triggers(outcomes []trigger.Outcome) []string {
	var entries []string
	for _, o := range outcomes {
		if entry, ok := Trigger(o); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func actionMessage(err error) string {
	if ae, ok := err.(*errors.ActionError); ok {
		return ae.Message()
	}
	return err.Error()
}
