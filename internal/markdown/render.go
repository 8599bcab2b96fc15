package markdown

import (
	"regexp"
	"strings"
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineCode
	lineHeading
	lineQuote
	lineRule
	lineItem
	linePlain
)

var (
	headingPattern  = regexp.MustCompile(`^(#{1,3}) (.+)$`)
	quotePattern    = regexp.MustCompile(`^&gt; (.+)$`)
	orderedPattern  = regexp.MustCompile(`^\d+\. (.+)$`)
	bulletPattern   = regexp.MustCompile(`^[-*] (.+)$`)
	strongStars     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	strongUnderline = regexp.MustCompile(`__(.+?)__`)
	emStar          = regexp.MustCompile(`\*(.+?)\*`)
	emUnderline     = regexp.MustCompile(`_(.+?)_`)
)

type line struct {
	kind  lineKind
	level int
	text  string
}

// classify commits a line to exactly one block kind. Precedence is fixed:
// code block, heading, blockquote, rule, list item, plain text.
func classify(raw string) line {
	switch {
	case strings.TrimSpace(raw) == "":
		return line{kind: lineBlank}
	case isBlockToken(strings.TrimSpace(raw)):
		return line{kind: lineCode, text: strings.TrimSpace(raw)}
	}
	if m := headingPattern.FindStringSubmatch(raw); m != nil {
		return line{kind: lineHeading, level: len(m[1]), text: m[2]}
	}
	if m := quotePattern.FindStringSubmatch(raw); m != nil {
		return line{kind: lineQuote, text: m[1]}
	}
	if raw == "---" {
		return line{kind: lineRule}
	}
	if m := orderedPattern.FindStringSubmatch(raw); m != nil {
		return line{kind: lineItem, text: m[1]}
	}
	if m := bulletPattern.FindStringSubmatch(raw); m != nil {
		return line{kind: lineItem, text: m[1]}
	}
	return line{kind: linePlain, text: raw}
}

func inline(s string) string {
	s = strongStars.ReplaceAllString(s, "<strong>$1</strong>")
	s = strongUnderline.ReplaceAllString(s, "<strong>$1</strong>")
	s = emStar.ReplaceAllString(s, "<em>$1</em>")
	return emUnderline.ReplaceAllString(s, "<em>$1</em>")
}

// Render turns protected, escaped text into markup. Blank lines separate
// groups; inside a group consecutive list items share one <ul> and consecutive
// plain lines share one <p>. It never fails: anything unrecognised stays text.
func Render(stripped string) string {
	if stripped == "" {
		return ""
	}

	var (
		blocks    []string
		items     []string
		paragraph []string
	)

	flushItems := func() {
		if len(items) == 0 {
			return
		}
		blocks = append(blocks, "<ul>"+strings.Join(items, "")+"</ul>")
		items = nil
	}
	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		blocks = append(blocks, "<p>"+strings.Join(paragraph, "\n")+"</p>")
		paragraph = nil
	}
	flush := func() {
		flushItems()
		flushParagraph()
	}

	for _, raw := range strings.Split(stripped, "\n") {
		l := classify(strings.TrimRight(raw, "\r"))
		switch l.kind {
		case lineBlank:
			flush()
		case lineItem:
			flushParagraph()
			items = append(items, "<li>"+inline(l.text)+"</li>")
		case linePlain:
			flushItems()
			paragraph = append(paragraph, inline(l.text))
		default:
			flush()
			blocks = append(blocks, renderBlock(l))
		}
	}
	flush()

	return strings.Join(blocks, "\n")
}

func renderBlock(l line) string {
	switch l.kind {
	case lineCode:
		return l.text
	case lineHeading:
		tag := []string{"", "h1", "h2", "h3"}[l.level]
		return "<" + tag + ">" + inline(l.text) + "</" + tag + ">"
	case lineQuote:
		return "<blockquote>" + inline(l.text) + "</blockquote>"
	case lineRule:
		return "<hr>"
	}
	return inline(l.text)
}

// ToHTML runs the whole pipeline: protect code, render structure, restore code.
func ToHTML(text string) string {
	stripped, table := Protect(text)
	return Restore(Render(stripped), table)
}
