package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind distinguishes fenced blocks from inline code spans.
type Kind int

const (
	Block Kind = iota
	Inline
)

const (
	tokenOpen  = '\uE000'
	tokenClose = '\uE001'
)

var (
	fencePattern  = regexp.MustCompile("```(\\w*)\\n?([\\s\\S]*?)```")
	inlinePattern = regexp.MustCompile("`([^`]+)`")
	blockLine     = regexp.MustCompile("^\uE000B\\d+\uE001$")

	// Input can never carry the token delimiters, so no token can be forged.
	sentinelScrubber = strings.NewReplacer(string(tokenOpen), "\uFFFD", string(tokenClose), "\uFFFD")
)

// Fragment is one protected code span. Content is already escaped.
type Fragment struct {
	Kind    Kind
	Content string
	Lang    string
}

// HTML returns the markup the fragment is restored as.
func (f Fragment) HTML() string {
	if f.Kind == Block {
		return `<pre><code class="language-` + f.Lang + `">` + f.Content + `</code></pre>`
	}
	return "<code>" + f.Content + "</code>"
}

// Table maps placeholder tokens to the code they stand for. A table belongs to
// a single render and is discarded afterwards.
type Table struct {
	fragments []Fragment
}

// Len reports how many spans were protected.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.fragments)
}

// Fragments returns the protected spans in token order.
func (t *Table) Fragments() []Fragment {
	if t == nil {
		return nil
	}
	return append([]Fragment(nil), t.fragments...)
}

func (t *Table) add(f Fragment) string {
	idx := len(t.fragments)
	t.fragments = append(t.fragments, f)
	return token(f.Kind, idx)
}

func token(kind Kind, idx int) string {
	letter := "B"
	if kind == Inline {
		letter = "I"
	}
	return string(tokenOpen) + letter + strconv.Itoa(idx) + string(tokenClose)
}

// CodeBlock is a fenced block as written, without escaping.
type CodeBlock struct {
	Lang string
	Code string
}

// CodeBlocks returns the fenced blocks of text in order of appearance.
func CodeBlocks(text string) []CodeBlock {
	var blocks []CodeBlock
	for _, sub := range fencePattern.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, CodeBlock{Lang: sub[1], Code: strings.TrimSpace(sub[2])})
	}
	return blocks
}

// Protect pulls fenced blocks and then inline code spans out of text, replacing
// each with an opaque token. Everything left outside the spans is escaped.
func Protect(text string) (string, *Table) {
	table := &Table{}
	if text == "" {
		return "", table
	}

	stripped := sentinelScrubber.Replace(text)

	stripped = fencePattern.ReplaceAllStringFunc(stripped, func(m string) string {
		sub := fencePattern.FindStringSubmatch(m)
		return table.add(Fragment{
			Kind:    Block,
			Lang:    sub[1],
			Content: Escape(strings.TrimSpace(sub[2])),
		})
	})

	stripped = inlinePattern.ReplaceAllStringFunc(stripped, func(m string) string {
		return table.add(Fragment{
			Kind:    Inline,
			Content: Escape(m[1 : len(m)-1]),
		})
	})

	// Tokens contain none of the escaped characters.
	return Escape(stripped), table
}

// Restore substitutes every token in html with its fragment in a single pass.
func Restore(html string, table *Table) string {
	if table.Len() == 0 {
		return html
	}
	pairs := make([]string, 0, 2*len(table.fragments))
	for i, f := range table.fragments {
		pairs = append(pairs, token(f.Kind, i), f.HTML())
	}
	return strings.NewReplacer(pairs...).Replace(html)
}

func isBlockToken(line string) bool {
	return blockLine.MatchString(line)
}
