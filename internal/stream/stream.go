// Package stream reveals a finished reply progressively by re-rendering a
// growing prefix of it.
package stream

import (
	"context"
	"time"
)

const (
	DefaultChunk = 6
	DefaultDelay = 8 * time.Millisecond
)

// RenderFunc turns text into a displayable frame.
type RenderFunc func(text string) string

// Renderer streams text in fixed-size rune slices. Each frame is a full render
// of everything revealed so far, never a patch of the previous frame.
type Renderer struct {
	render RenderFunc
	chunk  int
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithChunk sets the slice width in runes.
func WithChunk(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.chunk = n
		}
	}
}

// WithDelay sets the pause between frames.
func WithDelay(d time.Duration) Option {
	return func(r *Renderer) {
		if d >= 0 {
			r.delay = d
		}
	}
}

// WithSleep replaces the pause implementation.
func WithSleep(fn func(ctx context.Context, d time.Duration)) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.sleep = fn
		}
	}
}

// New returns a Renderer using render for every frame.
func New(render RenderFunc, opts ...Option) *Renderer {
	r := &Renderer{
		render: render,
		chunk:  DefaultChunk,
		delay:  DefaultDelay,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stream emits one frame per slice and then a final frame rendered from the
// whole text, which it also returns. The final frame is always identical to
// rendering text in one go. Once ctx is done the remaining intermediate frames
// and pauses are skipped, but the final frame is still emitted.
func (r *Renderer) Stream(ctx context.Context, text string, emit func(frame string)) string {
	runes := []rune(text)
	for end := r.chunk; end-r.chunk < len(runes); end += r.chunk {
		if ctx.Err() != nil {
			break
		}
		if end > len(runes) {
			end = len(runes)
		}
		if emit != nil {
			emit(r.render(string(runes[:end])))
		}
		r.sleep(ctx, r.delay)
	}

	final := r.render(text)
	if emit != nil {
		emit(final)
	}
	return final
}

// Frames returns the number of frames Stream emits for text.
func (r *Renderer) Frames(text string) int {
	n := len([]rune(text))
	return (n+r.chunk-1)/r.chunk + 1
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
