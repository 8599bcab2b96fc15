package command

import (
	"context"
	"regexp"
	"strings"
)

var (
	taggedPattern    = regexp.MustCompile(`(?is)<tool:(\w+)([^>]*)>(.*?)</tool>`)
	shorthandPattern = regexp.MustCompile(`(?m)^@@(\w+)[ \t]+(.*)$`)
	firstSpace       = regexp.MustCompile(`\s+`)
)

// Parser strips commands out of assistant text and hands each one to a
// Dispatcher as soon as it is found.
type Parser struct {
	dispatcher *Dispatcher
}

// NewParser returns a Parser dispatching through d.
func NewParser(d *Dispatcher) *Parser {
	return &Parser{dispatcher: d}
}

// Process dispatches every embedded command in raw and returns the canonical
// text (commands removed, outer whitespace trimmed) with one Result per
// command in execution order.
func (p *Parser) Process(ctx context.Context, host Host, raw string) (string, []Result) {
	var results []Result
	canonical := scan(raw, func(inv Invocation) {
		results = append(results, p.dispatcher.Dispatch(ctx, host, inv))
	})
	return canonical, results
}

// Parse extracts the commands from raw without running them.
func Parse(raw string) (string, []Invocation) {
	var invocations []Invocation
	canonical := scan(raw, func(inv Invocation) {
		invocations = append(invocations, inv)
	})
	return canonical, invocations
}

func scan(raw string, visit func(Invocation)) string {
	text := taggedPattern.ReplaceAllStringFunc(raw, func(span string) string {
		visit(parseTagged(taggedPattern.FindStringSubmatch(span)))
		return ""
	})

	text = shorthandPattern.ReplaceAllStringFunc(text, func(span string) string {
		visit(parseShorthand(shorthandPattern.FindStringSubmatch(span)))
		return ""
	})

	return strings.TrimSpace(text)
}

func parseTagged(m []string) Invocation {
	return Invocation{
		Name: m[1],
		Args: strings.Fields(m[2]),
		Body: strings.TrimSpace(m[3]),
	}
}

// parseShorthand keeps only the first token of the rest as an argument. The
// remainder after the first whitespace run is the body, verbatim.
func parseShorthand(m []string) Invocation {
	rest := strings.TrimRight(m[2], "\r")
	inv := Invocation{Name: m[1]}

	loc := firstSpace.FindStringIndex(rest)
	if loc == nil {
		inv.Args = []string{rest}
		return inv
	}
	inv.Args = []string{rest[:loc[0]]}
	inv.Body = rest[loc[1]:]
	return inv
}
