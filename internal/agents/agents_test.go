package agents

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider returns canned completions and records the last call.
type fakeProvider struct {
	response   string
	err        error
	lastSystem string
	lastUser   string
}

func (f *fakeProvider) Complete(_ context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user
	return f.response, f.err
}

func newTestAgents(t *testing.T, p Provider) *Agents {
	t.Helper()
	a, err := New(p, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestGenerateQuery_ParsesScript(t *testing.T) {
	p := &fakeProvider{response: `{"script": "Get-ChildItem | Measure-Object"}`}
	a := newTestAgents(t, p)

	script, err := a.GenerateQuery(context.Background(), "how many files?", "/Users/john/Downloads")
	if err != nil {
		t.Fatal(err)
	}
	if script != "Get-ChildItem | Measure-Object" {
		t.Errorf("script = %q", script)
	}
	if p.lastSystem == "" {
		t.Error("system prompt not sent")
	}
	for _, want := range []string{"how many files?", "/Users/john/Downloads"} {
		if !contains(p.lastUser, want) {
			t.Errorf("user message %q missing %q", p.lastUser, want)
		}
	}
}

func TestGenerateQuery_StripsCodeFences(t *testing.T) {
	p := &fakeProvider{response: "```json\n{\"script\": \"Get-Item .\"}\n```"}
	a := newTestAgents(t, p)

	script, err := a.GenerateQuery(context.Background(), "q", "/tmp")
	if err != nil {
		t.Fatal(err)
	}
	if script != "Get-Item ." {
		t.Errorf("script = %q", script)
	}
}

func TestGenerateQuery_MissingScriptIsProtocolError(t *testing.T) {
	p := &fakeProvider{response: `{"explanation": "no script here"}`}
	a := newTestAgents(t, p)

	_, err := a.GenerateQuery(context.Background(), "q", "/tmp")
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("err = %v, want ErrProtocol", err)
	}
}

func TestGenerateQuery_InvalidJSONIsProtocolError(t *testing.T) {
	p := &fakeProvider{response: `sure, here's a script: Get-ChildItem`}
	a := newTestAgents(t, p)

	_, err := a.GenerateQuery(context.Background(), "q", "/tmp")
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("err = %v, want ErrProtocol", err)
	}
}

func TestGenerateExecution_RequiresBothFields(t *testing.T) {
	cases := []struct {
		name     string
		response string
		wantErr  bool
	}{
		{"complete", `{"explanation": "moves PDFs", "script": "Move-Item a b"}`, false},
		{"missing explanation", `{"script": "Move-Item a b"}`, true},
		{"missing script", `{"explanation": "moves PDFs"}`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAgents(t, &fakeProvider{response: tc.response})
			explanation, script, err := a.GenerateExecution(context.Background(), "move pdfs", "[]", "/tmp")
			if tc.wantErr {
				if !errors.Is(err, ErrProtocol) {
					t.Errorf("err = %v, want ErrProtocol", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if explanation != "moves PDFs" || script != "Move-Item a b" {
				t.Errorf("got (%q, %q)", explanation, script)
			}
		})
	}
}

func TestGenerateExecution_IncludesPlanningData(t *testing.T) {
	p := &fakeProvider{response: `{"explanation": "e", "script": "s"}`}
	a := newTestAgents(t, p)

	_, _, err := a.GenerateExecution(context.Background(), "t", `[{"Name":"a.pdf"}]`, "/tmp")
	if err != nil {
		t.Fatal(err)
	}
	if !contains(p.lastUser, `[{"Name":"a.pdf"}]`) {
		t.Errorf("user message %q missing planning data", p.lastUser)
	}
}

func TestSummarize(t *testing.T) {
	p := &fakeProvider{response: `{"summary": "You have 12 files."}`}
	a := newTestAgents(t, p)

	summary, err := a.Summarize(context.Background(), "query", "how many files?", `{"Count":12}`)
	if err != nil {
		t.Fatal(err)
	}
	if summary != "You have 12 files." {
		t.Errorf("summary = %q", summary)
	}

	a = newTestAgents(t, &fakeProvider{response: `{}`})
	if _, err := a.Summarize(context.Background(), "query", "q", "o"); !errors.Is(err, ErrProtocol) {
		t.Errorf("err = %v, want ErrProtocol", err)
	}
}

// seqProvider returns one canned completion per call.
type seqProvider struct {
	responses []string
	calls     int
}

func (s *seqProvider) Complete(_ context.Context, _, _ string) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func TestGenerateQuery_RegeneratesOnceAfterMalformedResponse(t *testing.T) {
	p := &seqProvider{responses: []string{
		`not json at all`,
		`{"script": "Get-ChildItem"}`,
	}}
	a := newTestAgents(t, p)

	script, err := a.GenerateQuery(context.Background(), "q", "/tmp")
	if err != nil {
		t.Fatal(err)
	}
	if script != "Get-ChildItem" {
		t.Errorf("script = %q", script)
	}
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}
}

func TestGenerateQuery_GivesUpAfterSecondMalformedResponse(t *testing.T) {
	p := &seqProvider{responses: []string{`nope`, `still nope`}}
	a := newTestAgents(t, p)

	_, err := a.GenerateQuery(context.Background(), "q", "/tmp")
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("err = %v, want ErrProtocol", err)
	}
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}
}

func TestProviderErrorIsNotProtocolError(t *testing.T) {
	boom := errors.New("connection refused")
	a := newTestAgents(t, &fakeProvider{err: boom})

	_, err := a.GenerateQuery(context.Background(), "q", "/tmp")
	if err == nil || errors.Is(err, ErrProtocol) {
		t.Errorf("provider failure should not map to ErrProtocol: %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped provider error", err)
	}
}

func TestStripCodeFences(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripCodeFences(tc.in); got != tc.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
