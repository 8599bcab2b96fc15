package command

import (
	"context"
	"fmt"
	"strings"
)

func builtins() map[string]Func {
	return map[string]Func{
		"create_file": createFile,
		"open_url":    openURL,
		"alert":       alert,
		"set_title":   setTitle,
	}
}

func createFile(_ context.Context, host Host, inv Invocation) (string, error) {
	if len(inv.Args) == 0 || strings.TrimSpace(inv.Args[0]) == "" {
		return "", Refuse("No filename provided.")
	}
	name := inv.Args[0]
	content := inv.Body
	if content == "" {
		content = strings.Join(inv.Args[1:], " ")
	}

	if _, err := host.Download(name, []byte(content)); err != nil {
		return "", err
	}
	return fmt.Sprintf("File **%s** created and downloaded (%d bytes).", name, len(content)), nil
}

func openURL(_ context.Context, host Host, inv Invocation) (string, error) {
	if len(inv.Args) == 0 || strings.TrimSpace(inv.Args[0]) == "" {
		return "", Refuse("No URL provided.")
	}
	url := inv.Args[0]
	if err := host.OpenURL(url); err != nil {
		return "", err
	}
	return "Opened URL: " + url, nil
}

func alert(_ context.Context, host Host, inv Invocation) (string, error) {
	text := inv.Text()
	if err := host.Alert(text); err != nil {
		return "", err
	}
	return `Alert shown: "` + text + `".`, nil
}

func setTitle(_ context.Context, host Host, inv Invocation) (string, error) {
	title := strings.TrimSpace(inv.Text())
	if title == "" {
		return "", Refuse("No title provided.")
	}
	saved, err := host.SetTitle(title)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Chat title set to **%s**.", saved), nil
}
