package chat

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ZaguanLabs/corelyn/internal/trigger"
	"github.com/ZaguanLabs/corelyn/internal/validation"
)

const maxDownloadAttempts = 100

// TerminalHost performs command side effects on the local machine and hands
// notices to the front end through callbacks.
type TerminalHost struct {
	DownloadDir string
	OpenCommand string

	OnAlert func(text string)
	OnToast func(level trigger.Level, text string)
	OnTitle func(title string)

	// Launch starts an external program without waiting for it.
	Launch func(name string, args ...string) error

	logger *zap.Logger
}

// NewTerminalHost creates a host writing downloads to downloadDir and opening
// URLs with openCommand.
func NewTerminalHost(downloadDir, openCommand string, logger *zap.Logger) *TerminalHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TerminalHost{
		DownloadDir: downloadDir,
		OpenCommand: openCommand,
		Launch:      launch,
		logger:      logger.Named("host"),
	}
}

func launch(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Download writes content to a new file in the download directory. An
// existing file is never overwritten; a numbered name is picked instead.
func (h *TerminalHost) Download(name string, content []byte) (string, error) {
	if err := validation.ValidateFilename(name); err != nil {
		return "", err
	}
	dir := h.DownloadDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 0; i < maxDownloadAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", candidate, err)
		}
		if _, err := f.Write(content); err != nil {
			f.Close()
			return "", fmt.Errorf("write %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", candidate, err)
		}
		h.logger.Info("file downloaded", zap.String("path", path), zap.Int("bytes", len(content)))
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s", base)
}

// OpenURL hands url to the configured opener.
func (h *TerminalHost) OpenURL(url string) error {
	if err := validation.ValidateURL(url); err != nil {
		return err
	}
	fields := strings.Fields(h.OpenCommand)
	if len(fields) == 0 {
		return errors.New("no open command configured")
	}
	if h.Launch == nil {
		return errors.New("launching programs is disabled")
	}
	h.logger.Info("opening url", zap.String("url", url))
	return h.Launch(fields[0], append(fields[1:], url)...)
}

// Alert shows text to the user.
func (h *TerminalHost) Alert(text string) error {
	if h.OnAlert != nil {
		h.OnAlert(text)
	}
	return nil
}

// SetTitle tells the front end the chat was renamed.
func (h *TerminalHost) SetTitle(title string) (string, error) {
	if h.OnTitle != nil {
		h.OnTitle(title)
	}
	return title, nil
}

// Toast shows a transient notice.
func (h *TerminalHost) Toast(level trigger.Level, text string) {
	if h.OnToast != nil {
		h.OnToast(level, text)
	}
}
