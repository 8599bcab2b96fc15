// Package command extracts the commands an assistant embeds in its reply and
// dispatches them against a fixed registry.
//
// Two syntaxes are recognised:
//
//	<tool:NAME ARGS>BODY</tool>
//	@@NAME FIRST REST
//
// Tagged commands are handled first, left to right, then shorthand lines in
// what remains.
package command

import (
	"context"
	"strings"
)

// Invocation is one parsed command.
type Invocation struct {
	Name string
	Args []string
	Body string
}

// Text returns the body, or the arguments joined by a single space when the
// body is empty.
func (inv Invocation) Text() string {
	if inv.Body != "" {
		return inv.Body
	}
	return strings.Join(inv.Args, " ")
}

// Result is the outcome of one invocation. Every invocation produces one.
type Result struct {
	Name    string
	OK      bool
	Message string
}

// Host performs the side effects commands ask for.
type Host interface {
	// Download stores content under name and returns where it ended up.
	Download(name string, content []byte) (string, error)
	OpenURL(url string) error
	Alert(text string) error
	// SetTitle renames the chat and returns the title as it was stored.
	SetTitle(title string) (string, error)
}

// Func implements a command. A returned error becomes a failed Result.
type Func func(ctx context.Context, host Host, inv Invocation) (string, error)

type refusal string

func (r refusal) Error() string { return string(r) }

// Refuse reports a failed Result whose message is msg verbatim, rather than
// the "threw" form used for unexpected errors.
func Refuse(msg string) error {
	return refusal(msg)
}
