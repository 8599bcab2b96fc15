// Package export writes a stored chat as a standalone HTML document.
package export

import (
	"bytes"
	"errors"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/ZaguanLabs/corelyn/internal/markdown"
	"github.com/ZaguanLabs/corelyn/internal/storage"
)

var page = template.Must(template.New("chat").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; color: #222; }
.message { margin: 1rem 0; padding: .75rem 1rem; border-radius: .5rem; }
.user { background: #e8f0fe; }
.assistant { background: #f1f8e9; }
.tool-feedback { background: #fff8e1; font-size: .9rem; }
.meta { color: #777; font-size: .75rem; margin-bottom: .25rem; }
pre { background: #272822; color: #f8f8f2; padding: .75rem; overflow-x: auto; }
code { font-family: ui-monospace, monospace; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Messages}}<div class="message {{.Role}}">
<div class="meta">{{.Speaker}}{{if .When}} · {{.When}}{{end}}</div>
{{.Body}}
</div>
{{end}}</body>
</html>
`))

type pageData struct {
	Title    string
	Messages []messageData
}

type messageData struct {
	Role    string
	Speaker string
	When    string
	Body    template.HTML
}

// Write renders t to w. Assistant and feedback entries go through the
// markdown pipeline; user text is escaped verbatim.
func Write(w io.Writer, t *storage.Transcript) error {
	if t == nil {
		return errors.New("transcript cannot be nil")
	}
	data := pageData{Title: t.Summary.Name}
	for _, m := range t.Messages {
		data.Messages = append(data.Messages, messageData{
			Role:    m.Role,
			Speaker: speaker(m.Role),
			When:    when(m.CreatedAt),
			Body:    body(m),
		})
	}
	return page.Execute(w, data)
}

// HTML returns the document for t.
func HTML(t *storage.Transcript) (string, error) {
	var buf bytes.Buffer
	if err := Write(&buf, t); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func body(m storage.Message) template.HTML {
	if m.Role == storage.RoleUser {
		escaped := markdown.Escape(m.Content)
		return template.HTML("<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>")
	}
	return template.HTML(markdown.ToHTML(m.Content))
}

func speaker(role string) string {
	switch role {
	case storage.RoleUser:
		return "You"
	case storage.RoleAssistant:
		return "Assistant"
	case storage.RoleToolFeedback:
		return "Feedback"
	default:
		return role
	}
}

func when(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
