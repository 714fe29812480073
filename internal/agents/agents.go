// Package agents turns user text into generated PowerShell via a language
// model, one narrowly-scoped role per workflow step. Responses are strict
// JSON; anything malformed is a protocol error, never repaired in place —
// the safety layer downstream only sees scripts that parsed cleanly.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrProtocol marks a model response that violated the structured contract:
// unparsable JSON or a missing required field.
var ErrProtocol = errors.New("agents: malformed model response")

// Agents bundles the four model roles behind one provider.
type Agents struct {
	provider Provider
	prompts  *promptSet
	logger   *slog.Logger
}

// New creates the agent set. It fails only when the embedded prompt
// manifest is broken.
func New(provider Provider, logger *slog.Logger) (*Agents, error) {
	ps, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	return &Agents{
		provider: provider,
		prompts:  ps,
		logger:   logger.With("component", "agents"),
	}, nil
}

// GenerateQuery asks for a read-only script answering a question.
func (a *Agents) GenerateQuery(ctx context.Context, question, sandbox string) (string, error) {
	user := fmt.Sprintf("User's question: %s, Sandbox scope: %s", question, sandbox)
	resp, err := a.callChecked(ctx, "query", a.prompts.Query, user, checkScript)
	if err != nil {
		return "", err
	}
	return resp.Script, nil
}

// GeneratePlan asks for a read-only script that gathers planning data for a
// task.
func (a *Agents) GeneratePlan(ctx context.Context, task, sandbox string) (string, error) {
	user := fmt.Sprintf("User's task: %s, Sandbox scope: %s", task, sandbox)
	resp, err := a.callChecked(ctx, "planner", a.prompts.Planner, user, checkScript)
	if err != nil {
		return "", err
	}
	return resp.Script, nil
}

// GenerateExecution asks for a mutating script plus a human-readable
// explanation, given the planning output.
func (a *Agents) GenerateExecution(ctx context.Context, task, planning, sandbox string) (explanation, script string, err error) {
	user := fmt.Sprintf("User's task: %s, Sandbox scope: %s, Planning data: %s", task, sandbox, planning)
	resp, err := a.callChecked(ctx, "executor", a.prompts.Executor, user, func(r *agentResponse) error {
		if r.Explanation == "" {
			return fmt.Errorf("%w: missing explanation field", ErrProtocol)
		}
		return checkScript(r)
	})
	if err != nil {
		return "", "", err
	}
	return resp.Explanation, resp.Script, nil
}

// Summarize renders script output as a user-facing answer.
func (a *Agents) Summarize(ctx context.Context, mode, request, output string) (string, error) {
	user := fmt.Sprintf("Mode: %s, Original request: %s, Script output: %s", mode, request, output)
	resp, err := a.callChecked(ctx, "summary", a.prompts.Summary, user, func(r *agentResponse) error {
		if r.Summary == "" {
			return fmt.Errorf("%w: missing summary field", ErrProtocol)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return resp.Summary, nil
}

// agentResponse is the superset of fields across the role contracts.
type agentResponse struct {
	Script      string `json:"script"`
	Explanation string `json:"explanation"`
	Summary     string `json:"summary"`
}

func checkScript(r *agentResponse) error {
	if r.Script == "" {
		return fmt.Errorf("%w: missing script field", ErrProtocol)
	}
	return nil
}

// callChecked calls the model and validates the response shape, regenerating
// once when the response violates the protocol. A regenerated script is an
// ordinary script to everything downstream; it earns no trust from the retry.
func (a *Agents) callChecked(ctx context.Context, role, system, user string, check func(*agentResponse) error) (*agentResponse, error) {
	for attempt := 0; ; attempt++ {
		resp, err := a.call(ctx, role, system, user)
		if err == nil {
			err = check(resp)
			if err == nil {
				return resp, nil
			}
		}
		if attempt == 0 && errors.Is(err, ErrProtocol) && ctx.Err() == nil {
			a.logger.Warn("regenerating after malformed response", "role", role)
			continue
		}
		return nil, err
	}
}

func (a *Agents) call(ctx context.Context, role, system, user string) (*agentResponse, error) {
	text, err := a.provider.Complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("agents: %s call: %w", role, err)
	}

	var resp agentResponse
	cleaned := stripCodeFences(text)
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		a.logger.Warn("unparsable model response", "role", role, "error", err)
		return nil, fmt.Errorf("%w: %s returned invalid JSON: %v", ErrProtocol, role, err)
	}
	return &resp, nil
}

// stripCodeFences removes a surrounding markdown code block, which models
// sometimes wrap around JSON despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[3:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
