package markdown

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain paragraph", in: "hello world", want: "<p>hello world</p>"},
		{
			name: "paragraphs split on blank lines",
			in:   "line one\nline two\n\nnext",
			want: "<p>line one\nline two</p>\n<p>next</p>",
		},
		{name: "escapes markup", in: `<b>"x" & 'y'</b>`, want: "<p>&lt;b&gt;&quot;x&quot; &amp; &#39;y&#39;&lt;/b&gt;</p>"},
		{name: "heading levels", in: "# One\n## Two\n### Three", want: "<h1>One</h1>\n<h2>Two</h2>\n<h3>Three</h3>"},
		{name: "four hashes is text", in: "#### four", want: "<p>#### four</p>"},
		{name: "heading keeps emphasis", in: "# Hello **world**", want: "<h1>Hello <strong>world</strong></h1>"},
		{name: "blockquote", in: "> quoted *text*", want: "<blockquote>quoted <em>text</em></blockquote>"},
		{name: "rule", in: "above\n---\nbelow", want: "<p>above</p>\n<hr>\n<p>below</p>"},
		{
			name: "list run merges",
			in:   "- a\n- b\n1. c",
			want: "<ul><li>a</li><li>b</li><li>c</li></ul>",
		},
		{name: "star bullet with italic", in: "* item *x*", want: "<ul><li>item <em>x</em></li></ul>"},
		{
			name: "list then paragraph",
			in:   "intro\n- a\n- b\nafter",
			want: "<p>intro</p>\n<ul><li>a</li><li>b</li></ul>\n<p>after</p>",
		},
		{name: "underscore emphasis", in: "_it_ and __b__", want: "<p><em>it</em> and <strong>b</strong></p>"},
		{name: "inline code escaped", in: "use `a < b` now", want: "<p>use <code>a &lt; b</code> now</p>"},
		{
			name: "fenced block with language",
			in:   "```go\nfmt.Println(\"hi\")\n```",
			want: `<pre><code class="language-go">fmt.Println(&quot;hi&quot;)</code></pre>`,
		},
		{
			name: "fence protects formatting",
			in:   "```\n**bold** and _x_\n# not a heading\n```",
			want: "<pre><code class=\"language-\">**bold** and _x_\n# not a heading</code></pre>",
		},
		{
			name: "inline code protects emphasis",
			in:   "see `**raw**` here",
			want: "<p>see <code>**raw**</code> here</p>",
		},
		{
			name: "unterminated fence degrades to text",
			in:   "```go\nfmt",
			want: "<p>```go\nfmt</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToHTML(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("ToHTML(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestProtect_RecordsFragmentsInOrder(t *testing.T) {
	stripped, table := Protect("```go\n  fmt.Println(1)  \n```\nand `x<y`")

	want := []Fragment{
		{Kind: Block, Lang: "go", Content: "fmt.Println(1)"},
		{Kind: Inline, Content: "x&lt;y"},
	}
	if diff := cmp.Diff(want, table.Fragments()); diff != "" {
		t.Fatalf("fragments mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(stripped, "fmt") || strings.Contains(stripped, "`") {
		t.Fatalf("stripped text still contains code: %q", stripped)
	}
	if got := Restore(stripped, table); !strings.Contains(got, "<code>x&lt;y</code>") {
		t.Fatalf("restore lost inline fragment: %q", got)
	}
}

func TestProtect_InputCannotForgeTokens(t *testing.T) {
	forged := token(Block, 0) + " then\n```\ncode\n```"

	got := ToHTML(forged)

	if n := strings.Count(got, "<pre>"); n != 1 {
		t.Fatalf("expected exactly one code block, got %d in %q", n, got)
	}
	if !strings.Contains(got, "\uFFFDB0\uFFFD") {
		t.Fatalf("expected scrubbed sentinel characters, got %q", got)
	}
}

func TestRestore_WithEmptyTable(t *testing.T) {
	if got := Restore("<p>x</p>", &Table{}); got != "<p>x</p>" {
		t.Fatalf("unexpected restore output %q", got)
	}
	if got := Restore("<p>x</p>", nil); got != "<p>x</p>" {
		t.Fatalf("unexpected restore output with nil table %q", got)
	}
}

func TestEscape(t *testing.T) {
	if got := Escape(`&<>"'`); got != "&amp;&lt;&gt;&quot;&#39;" {
		t.Fatalf("Escape returned %q", got)
	}
}

func TestRender_ManyFragments(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("`c")
		b.WriteString(strings.Repeat("x", i))
		b.WriteString("` ")
	}
	got := ToHTML(b.String())
	if strings.ContainsRune(got, '\uE000') || strings.ContainsRune(got, '\uE001') {
		t.Fatalf("tokens leaked into output: %q", got)
	}
	if !strings.Contains(got, "<code>c"+strings.Repeat("x", 11)+"</code>") {
		t.Fatalf("fragment 11 not restored: %q", got)
	}
}
