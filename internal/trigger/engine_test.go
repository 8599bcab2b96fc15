package trigger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type toastRecord struct {
	level Level
	text  string
}

type fakeHost struct {
	alerts []string
	toasts []toastRecord
}

func (h *fakeHost) Alert(text string) error {
	h.alerts = append(h.alerts, text)
	return nil
}

func (h *fakeHost) Toast(level Level, text string) {
	h.toasts = append(h.toasts, toastRecord{level: level, text: text})
}

func newEngine(t *testing.T, rules ...Rule) *Engine {
	t.Helper()
	e, err := NewEngine(StaticSource(rules), Options{Timeout: time.Second}, nil)
	require.NoError(t, err)
	return e
}

func TestEvaluate_ContainsIsCaseInsensitive(t *testing.T) {
	e := newEngine(t, Rule{Match: "hello", Kind: Contains, Action: "return 1"})
	host := &fakeHost{}

	outcomes := e.Evaluate(context.Background(), host, "Hello World")

	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.True(t, o.Matched)
	assert.Equal(t, "hello", o.MatchedText)
	require.Len(t, o.Captures, 1)
	assert.Equal(t, "hello", *o.Captures[0])
	assert.True(t, o.HasPreview)
	assert.Equal(t, "1", o.Preview)
	assert.Equal(t, []toastRecord{{level: Info, text: `Trigger fired: "hello"`}}, host.toasts)
}

func TestEvaluate_ResponseLength(t *testing.T) {
	e := newEngine(t, Rule{Match: "error", Kind: Contains, Action: "return #response"})

	outcomes := e.Evaluate(context.Background(), &fakeHost{}, "An error occurred")

	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].ActionErr)
	assert.True(t, outcomes[0].HasPreview)
	assert.Equal(t, "17", outcomes[0].Preview)
}

func TestEvaluate_RegexCaptureAlert(t *testing.T) {
	e := newEngine(t, Rule{Match: `(\d+)%`, Kind: Regex, Action: "alert(match[1])"})
	host := &fakeHost{}

	outcomes := e.Evaluate(context.Background(), host, "Progress: 42%")

	require.Len(t, outcomes, 1)
	o := outcomes[0]
	assert.True(t, o.Matched)
	assert.Equal(t, "42%", o.MatchedText)
	require.Len(t, o.Captures, 2)
	assert.Equal(t, "42", *o.Captures[1])
	assert.False(t, o.HasPreview)
	assert.Equal(t, []string{"42"}, host.alerts)
}

func TestEvaluate_RegexIsCaseInsensitive(t *testing.T) {
	e := newEngine(t, Rule{Match: `fail(ed)?`, Kind: Regex, Action: "return match[0]"})

	outcomes := e.Evaluate(context.Background(), &fakeHost{}, "Build FAILED twice")

	require.Len(t, outcomes, 1)
	assert.Equal(t, "FAILED", outcomes[0].Preview)
}

func TestEvaluate_InvalidPatternDoesNotBlockLaterRules(t *testing.T) {
	e := newEngine(t,
		Rule{Match: "(", Kind: Regex, Action: "return 1"},
		Rule{Match: "ok", Kind: Contains, Action: "return 2"},
	)
	host := &fakeHost{}

	outcomes := e.Evaluate(context.Background(), host, "all ok")

	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].PatternErr)
	assert.False(t, outcomes[0].Matched)
	assert.NoError(t, outcomes[0].ActionErr)
	assert.True(t, outcomes[1].Matched)
	assert.Equal(t, "2", outcomes[1].Preview)

	require.Len(t, host.toasts, 2)
	assert.Equal(t, Error, host.toasts[0].level)
	assert.True(t, strings.HasPrefix(host.toasts[0].text, "Trigger #1 match error: "), host.toasts[0].text)
	assert.Equal(t, `Trigger fired: "ok"`, host.toasts[1].text)
}

func TestEvaluate_ActionErrorIsIsolated(t *testing.T) {
	e := newEngine(t,
		Rule{Match: "x", Action: `error("boom")`},
		Rule{Match: "x", Action: "return 'fine'"},
	)
	host := &fakeHost{}

	outcomes := e.Evaluate(context.Background(), host, "x marks the spot")

	require.Len(t, outcomes, 2)
	require.Error(t, outcomes[0].ActionErr)
	assert.Contains(t, actionMessage(outcomes[0].ActionErr), "boom")
	assert.True(t, outcomes[0].Matched)
	assert.Equal(t, "fine", outcomes[1].Preview)

	require.Len(t, host.toasts, 3)
	assert.Equal(t, Error, host.toasts[0].level)
	assert.True(t, strings.HasPrefix(host.toasts[0].text, "Trigger #1 action error: "), host.toasts[0].text)
	assert.Equal(t, `Trigger fired: "x"`, host.toasts[1].text)
}

func TestEvaluate_SyntaxErrorIsActionError(t *testing.T) {
	e := newEngine(t, Rule{Match: "x", Action: "return +"})

	outcomes := e.Evaluate(context.Background(), &fakeHost{}, "x")

	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].ActionErr)
	assert.NoError(t, outcomes[0].PatternErr)
}

func TestEvaluate_ActionTimeout(t *testing.T) {
	e, err := NewEngine(StaticSource{{Match: "x", Action: "while true do end"}}, Options{Timeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	start := time.Now()
	outcomes := e.Evaluate(context.Background(), &fakeHost{}, "x")

	require.Len(t, outcomes, 1)
	assert.Error(t, outcomes[0].ActionErr)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestEvaluate_RestrictedEnvironment(t *testing.T) {
	e := newEngine(t, Rule{
		Match:  "x",
		Action: `return type(dofile) .. "," .. type(loadstring) .. "," .. type(io) .. "," .. type(os) .. "," .. type(string.upper)`,
	})

	outcomes := e.Evaluate(context.Background(), &fakeHost{}, "x")

	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].ActionErr)
	assert.Equal(t, "nil,nil,nil,nil,function", outcomes[0].Preview)
}

func TestEvaluate_PreviewIsTruncated(t *testing.T) {
	e := newEngine(t, Rule{Match: "x", Action: `return string.rep("é", 100)`})

	outcomes := e.Evaluate(context.Background(), &fakeHost{}, "x")

	require.Len(t, outcomes, 1)
	assert.Equal(t, strings.Repeat("é", 80), outcomes[0].Preview)
}

func TestEvaluate_SkipsIncompleteRulesAndReportsMisses(t *testing.T) {
	e := newEngine(t,
		Rule{Match: "", Action: "return 1"},
		Rule{Match: "x", Action: ""},
		Rule{Match: "absent", Action: "return 1"},
	)
	host := &fakeHost{}

	outcomes := e.Evaluate(context.Background(), host, "x")

	require.Len(t, outcomes, 1)
	assert.Equal(t, 2, outcomes[0].Index)
	assert.False(t, outcomes[0].Matched)
	assert.Empty(t, host.toasts)
}

func TestEvaluate_NonParticipatingGroupIsNil(t *testing.T) {
	e := newEngine(t, Rule{
		Match:  `(a)|(b)`,
		Kind:   Regex,
		Action: `return tostring(match[1]) .. "," .. match[2]`,
	})

	outcomes := e.Evaluate(context.Background(), &fakeHost{}, "b")

	require.Len(t, outcomes, 1)
	o := outcomes[0]
	require.Len(t, o.Captures, 3)
	assert.Nil(t, o.Captures[1])
	assert.Equal(t, "b", *o.Captures[2])
	assert.Equal(t, "nil,b", o.Preview)
}

func TestEvaluate_GlobalsAndNotify(t *testing.T) {
	e := newEngine(t, Rule{
		Match:  "done",
		Action: `notify("saw " .. match[0]); log("hello"); return response`,
	})
	host := &fakeHost{}

	outcomes := e.Evaluate(context.Background(), host, "all done")

	require.Len(t, outcomes, 1)
	assert.Equal(t, "all done", outcomes[0].Preview)
	assert.Equal(t, []toastRecord{
		{level: Info, text: "saw done"},
		{level: Info, text: `Trigger fired: "done"`},
	}, host.toasts)
}

func TestEngine_CachesCompiledPatterns(t *testing.T) {
	e := newEngine(t, Rule{Match: `\d+`, Kind: Regex, Action: "return 1"})

	e.Evaluate(context.Background(), &fakeHost{}, "1")
	e.Evaluate(context.Background(), &fakeHost{}, "2")

	assert.Equal(t, 1, e.cache.Len())
}

func TestKind_Normalized(t *testing.T) {
	assert.Equal(t, Regex, Kind("REGEX").Normalized())
	assert.Equal(t, Contains, Kind("").Normalized())
	assert.Equal(t, Contains, Kind("glob").Normalized())
}

func TestChain_Rules(t *testing.T) {
	c := Chain{StaticSource{{Match: "a"}}, nil, StaticSource{{Match: "b"}}}
	rules := c.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, "a", rules[0].Match)
	assert.Equal(t, "b", rules[1].Match)
}

func TestEvaluate_PrintGoesToLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	e, err := NewEngine(StaticSource{{Match: "x", Kind: Contains, Action: `print("noisy", 2) return "ok"`}},
		Options{Timeout: time.Second}, zap.New(core))
	require.NoError(t, err)

	outcomes := e.Evaluate(context.Background(), &fakeHost{}, "x")

	require.Len(t, outcomes, 1)
	assert.NoError(t, outcomes[0].ActionErr)
	assert.Equal(t, "ok", outcomes[0].Preview)

	entries := logs.FilterMessage("trigger action log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "noisy\t2", entries[0].ContextMap()["message"])
	assert.EqualValues(t, 1, entries[0].ContextMap()["rule"])
}

func TestRun_CapturesPrintAndResult(t *testing.T) {
	e := newEngine(t)
	host := &fakeHost{}

	res := e.Run(context.Background(), host, `print("a", true) alert("hey") return 6 * 7`)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"a\ttrue"}, res.Output)
	assert.True(t, res.HasResult)
	assert.Equal(t, "a\ttrue\n→ 42", res.String())
	assert.Equal(t, []string{"hey"}, host.alerts)

	res = e.Run(context.Background(), host, `print("before") error("boom")`)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "boom")
	assert.True(t, strings.HasPrefix(res.String(), "before\nError: "))

	res = e.Run(context.Background(), nil, `local x = 1`)
	assert.NoError(t, res.Err)
	assert.Equal(t, "(no output)", res.String())

	res = e.Run(context.Background(), nil, `os.execute("true")`)
	assert.Error(t, res.Err)
}
