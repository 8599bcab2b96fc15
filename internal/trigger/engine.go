package trigger

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/ZaguanLabs/corelyn/internal/errors"
)

const previewLimit = 80

// Options bounds the action runtime.
type Options struct {
	Timeout         time.Duration
	CallStackSize   int
	RegistryMaxSize int
	RegexCacheSize  int
}

// DefaultOptions returns the limits used when none are configured.
func DefaultOptions() Options {
	return Options{
		Timeout:         2 * time.Second,
		CallStackSize:   120,
		RegistryMaxSize: 64 * 1024,
		RegexCacheSize:  128,
	}
}

// Engine evaluates the rules of a Source.
type Engine struct {
	source Source
	opts   Options
	cache  *lru.Cache[string, *regexp.Regexp]
	logger *zap.Logger
}

// NewEngine builds an Engine. Zero option fields take their defaults.
func NewEngine(source Source, opts Options, logger *zap.Logger) (*Engine, error) {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.CallStackSize <= 0 {
		opts.CallStackSize = def.CallStackSize
	}
	if opts.RegistryMaxSize <= 0 {
		opts.RegistryMaxSize = def.RegistryMaxSize
	}
	if opts.RegexCacheSize <= 0 {
		opts.RegexCacheSize = def.RegexCacheSize
	}
	if source == nil {
		source = StaticSource(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cache, err := lru.New[string, *regexp.Regexp](opts.RegexCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create regex cache: %w", err)
	}

	return &Engine{
		source: source,
		opts:   opts,
		cache:  cache,
		logger: logger.Named("trigger"),
	}, nil
}

// Rules returns the rules the next evaluation would use.
func (e *Engine) Rules() []Rule {
	return e.source.Rules()
}

// Evaluate runs every rule against text in order. Rules with an empty pattern
// or action are skipped; rules that do not match are returned with Matched
// false. No failure of one rule affects another.
func (e *Engine) Evaluate(ctx context.Context, host Host, text string) []Outcome {
	var outcomes []Outcome
	for i, rule := range e.source.Rules() {
		if rule.Match == "" || rule.Action == "" {
			continue
		}
		outcomes = append(outcomes, e.evaluateRule(ctx, host, i, rule, text))
	}
	return outcomes
}

func (e *Engine) evaluateRule(ctx context.Context, host Host, idx int, rule Rule, text string) Outcome {
	out := Outcome{Index: idx, Rule: rule}
	log := e.logger.With(zap.Int("rule", idx+1), zap.String("pattern", rule.Match))

	captures, err := e.match(idx, rule, text)
	if err != nil {
		out.PatternErr = err
		log.Warn("trigger pattern failed", zap.Error(err))
		toast(host, Error, fmt.Sprintf("Trigger #%d match error: %s", idx+1, errors.Unwrap(err).Error()))
		return out
	}
	if captures == nil {
		return out
	}

	out.Matched = true
	out.Captures = captures
	if captures[0] != nil {
		out.MatchedText = *captures[0]
	}

	preview, ok, err := e.runAction(ctx, host, idx, rule, text, captures)
	if err != nil {
		out.ActionErr = err
		log.Warn("trigger action failed", zap.Error(err))
		toast(host, Error, fmt.Sprintf("Trigger #%d action error: %s", idx+1, actionMessage(err)))
	} else {
		out.Preview, out.HasPreview = preview, ok
		log.Debug("trigger action ran", zap.Bool("has_preview", ok))
	}

	toast(host, Info, `Trigger fired: "`+rule.Match+`"`)
	return out
}

// match returns nil captures when the rule does not match.
func (e *Engine) match(idx int, rule Rule, text string) ([]*string, error) {
	if rule.Kind.Normalized() == Contains {
		if !strings.Contains(strings.ToLower(text), strings.ToLower(rule.Match)) {
			return nil, nil
		}
		pattern := rule.Match
		return []*string{&pattern}, nil
	}

	re, err := e.compile(rule.Match)
	if err != nil {
		return nil, errors.NewPatternError(idx+1, rule.Match, err)
	}
	loc := re.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, nil
	}
	captures := make([]*string, len(loc)/2)
	for i := range captures {
		if loc[2*i] < 0 {
			continue
		}
		s := text[loc[2*i]:loc[2*i+1]]
		captures[i] = &s
	}
	return captures, nil
}

func (e *Engine) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	e.cache.Add(pattern, re)
	return re, nil
}

func toast(host Host, level Level, text string) {
	if host != nil {
		host.Toast(level, text)
	}
}

func actionMessage(err error) string {
	if ae, ok := err.(*errors.ActionError); ok {
		return ae.Message()
	}
	return err.Error()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
