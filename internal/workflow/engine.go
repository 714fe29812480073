// Package workflow sequences agent calls, classification, sandboxed
// execution, and summarization for the read-only Query path and the
// approval-gated Task path. One human decision gates every mutation; one
// workflow runs per sandbox at a time.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/raytonc/dy/internal/agents"
	"github.com/raytonc/dy/internal/execution"
	"github.com/raytonc/dy/internal/history"
	"github.com/raytonc/dy/internal/safety"
)

// MaxInputLength caps user text before any agent call is made.
const MaxInputLength = 10_000

// Agent generates scripts and summaries. The model behind it is untrusted;
// everything it returns goes through classification.
type Agent interface {
	GenerateQuery(ctx context.Context, question, sandbox string) (string, error)
	GeneratePlan(ctx context.Context, task, sandbox string) (string, error)
	GenerateExecution(ctx context.Context, task, planning, sandbox string) (explanation, script string, err error)
	Summarize(ctx context.Context, mode, request, output string) (string, error)
}

// Runner executes classified script text.
type Runner interface {
	Run(ctx context.Context, script string, timeout time.Duration) execution.Result
}

// UI receives workflow progress and results for rendering.
type UI interface {
	Display(msg string)
	DisplayError(msg string)
	DisplayScript(script string)
	Status(status string)
}

// Approver blocks on the single human decision preceding a mutating
// execution. It has no timeout of its own but must honor ctx cancellation.
type Approver interface {
	RequestApproval(ctx context.Context, explanation, script string) (bool, error)
}

// Journal records finished runs. May be nil.
type Journal interface {
	Record(ctx context.Context, r history.Run) error
}

// Params configures an Engine.
type Params struct {
	Sandbox      string // canonical-cased display path; root of all effects
	Agent        Agent
	Runner       Runner
	Guard        execution.Guard
	Journal      Journal
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Engine is the workflow state machine. All mode and progress state lives
// here explicitly, never in package globals.
type Engine struct {
	sandbox    string
	classifier *safety.Classifier
	agent      Agent
	runner     Runner
	guard      execution.Guard
	journal    Journal

	readTimeout  time.Duration
	writeTimeout time.Duration

	sem    *semaphore.Weighted
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// New builds an Engine. Timeouts default to 60s/300s when unset.
func New(p Params) *Engine {
	if p.ReadTimeout <= 0 {
		p.ReadTimeout = 60 * time.Second
	}
	if p.WriteTimeout <= 0 {
		p.WriteTimeout = 300 * time.Second
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Engine{
		sandbox:      p.Sandbox,
		classifier:   safety.NewClassifier(p.Sandbox),
		agent:        p.Agent,
		runner:       p.Runner,
		guard:        p.Guard,
		journal:      p.Journal,
		readTimeout:  p.ReadTimeout,
		writeTimeout: p.WriteTimeout,
		sem:          semaphore.NewWeighted(1),
		logger:       p.Logger.With("component", "workflow"),
		state:        StateIdle,
	}
}

// State reports the engine's current position.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Query runs the read-only flow: generate a read script, classify, execute,
// guard, summarize. Anything other than a read classification fails the
// request before execution.
func (e *Engine) Query(ctx context.Context, question string, ui UI) error {
	if err := e.begin(question, ui); err != nil {
		return err
	}
	defer e.finish()

	rec := history.Run{Mode: "query", Request: question}
	err := e.runQuery(ctx, question, ui, &rec)
	e.settle(ui, &rec, err)
	return err
}

func (e *Engine) runQuery(ctx context.Context, question string, ui UI, rec *history.Run) error {
	e.setState(StateAgentCall)
	ui.Status("Calling AI agent...")
	script, err := e.agent.GenerateQuery(ctx, question, e.sandbox)
	if err != nil {
		return e.agentFailure(ctx, err)
	}

	e.setState(StateClassifying)
	ui.Status("Validating script...")
	rec.Script = script
	class := e.classifier.Classify(script)
	rec.Classification = string(class)
	if class != safety.Read {
		return fmt.Errorf("%w: query script classified %s", ErrClassificationRejected, class)
	}

	e.setState(StateExecuting)
	ui.Status("Running script...")
	ui.DisplayScript(script)
	res := e.runner.Run(ctx, script, e.readTimeout)
	if err := e.executionFailure(ctx, res); err != nil {
		return err
	}

	e.setState(StateGuarding)
	if err := e.guard.Check(res.Stdout); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputTooLarge, err)
	}

	e.setState(StateSummarizing)
	ui.Status("Summarizing results...")
	summary, err := e.agent.Summarize(ctx, "query", question, res.Stdout)
	if err != nil {
		return e.agentFailure(ctx, err)
	}
	ui.Display(summary)
	rec.Succeeded = true
	return nil
}

// Task runs the mutating flow: a read-only planning pass, then a proposed
// mutating script that executes only after the approver accepts it.
// Rejection terminates cleanly with a cancelled result and zero filesystem
// effect.
func (e *Engine) Task(ctx context.Context, task string, ui UI, approver Approver) error {
	if err := e.begin(task, ui); err != nil {
		return err
	}
	defer e.finish()

	rec := history.Run{Mode: "task", Request: task}
	err := e.runTask(ctx, task, ui, approver, &rec)
	e.settle(ui, &rec, err)
	return err
}

func (e *Engine) runTask(ctx context.Context, task string, ui UI, approver Approver, rec *history.Run) error {
	// Planning pass: read-only reconnaissance for the executor agent.
	e.setState(StateAgentCall)
	ui.Status("Calling AI planner...")
	planScript, err := e.agent.GeneratePlan(ctx, task, e.sandbox)
	if err != nil {
		return e.agentFailure(ctx, err)
	}

	e.setState(StateClassifying)
	ui.Status("Validating plan...")
	if class := e.classifier.Classify(planScript); class != safety.Read {
		rec.Script = planScript
		rec.Classification = string(class)
		return fmt.Errorf("%w: planning script classified %s", ErrClassificationRejected, class)
	}

	e.setState(StateExecuting)
	ui.Status("Running analysis...")
	ui.DisplayScript(planScript)
	planRes := e.runner.Run(ctx, planScript, e.readTimeout)
	if err := e.executionFailure(ctx, planRes); err != nil {
		return err
	}

	e.setState(StateGuarding)
	if err := e.guard.Check(planRes.Stdout); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputTooLarge, err)
	}

	// Executor pass: the proposed mutation, gated on approval.
	e.setState(StateAgentCall)
	ui.Status("Generating execution plan...")
	explanation, script, err := e.agent.GenerateExecution(ctx, task, planRes.Stdout, e.sandbox)
	if err != nil {
		return e.agentFailure(ctx, err)
	}

	e.setState(StateClassifying)
	ui.Status("Validating execution...")
	rec.Script = script
	class := e.classifier.Classify(script)
	rec.Classification = string(class)
	if class == safety.Unsafe {
		return fmt.Errorf("%w: executor script", ErrUnsafeScript)
	}

	e.setState(StateApprovalPending)
	ui.Status("Awaiting approval...")
	approved, err := approver.RequestApproval(ctx, explanation, script)
	if err != nil {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		return fmt.Errorf("approval: %w", err)
	}
	if !approved {
		rec.Detail = "declined at approval"
		ui.Display("Cancelled.")
		return nil
	}
	rec.Approved = true

	e.setState(StateApprovedExecuting)
	ui.Status("Executing changes...")
	res := e.runner.Run(ctx, script, e.writeTimeout)
	if err := e.executionFailure(ctx, res); err != nil {
		return err
	}

	e.setState(StateGuarding)
	if err := e.guard.Check(res.Stdout); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputTooLarge, err)
	}

	e.setState(StateSummarizing)
	ui.Status("Summarizing results...")
	summary, err := e.agent.Summarize(ctx, "task", task, res.Stdout)
	if err != nil {
		return e.agentFailure(ctx, err)
	}
	ui.Display(summary)
	rec.Succeeded = true
	return nil
}

// begin validates input and claims the single-workflow slot.
func (e *Engine) begin(input string, ui UI) error {
	if len(input) > MaxInputLength {
		msg := fmt.Sprintf("Input too long (%d characters). Maximum is %d characters.", len(input), MaxInputLength)
		ui.DisplayError(msg)
		return fmt.Errorf("%w: %d characters", ErrInputTooLong, len(input))
	}
	if !e.sem.TryAcquire(1) {
		ui.DisplayError("Another request is already running.")
		return ErrBusy
	}
	return nil
}

// finish releases the single-workflow slot. The terminal state set by
// settle stays visible until the next run begins.
func (e *Engine) finish() {
	e.sem.Release(1)
}

// settle renders the terminal outcome, sets the absorbing state, and
// journals the run.
func (e *Engine) settle(ui UI, rec *history.Run, err error) {
	switch {
	case err == nil:
		e.setState(StateDone)
	case errors.Is(err, ErrCancelled):
		e.setState(StateDone)
		rec.Detail = "cancelled"
		ui.Display("Cancelled.")
	default:
		e.setState(StateError)
		rec.Detail = err.Error()
		ui.DisplayError(userMessage(err))
	}

	if e.journal != nil {
		// Journal with a fresh context: the workflow context may already
		// be cancelled and the record must still land.
		jctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if jerr := e.journal.Record(jctx, *rec); jerr != nil {
			e.logger.Warn("journal write failed", "error", jerr)
		}
	}

	if err != nil {
		e.logger.Info("workflow finished", "mode", rec.Mode, "error", err)
	} else {
		e.logger.Info("workflow finished", "mode", rec.Mode, "succeeded", rec.Succeeded)
	}
}

// agentFailure maps an agent error, preferring cancellation, then protocol
// violations, then plain call failure.
func (e *Engine) agentFailure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if errors.Is(err, agents.ErrProtocol) {
		return fmt.Errorf("%w: %v", ErrAgentProtocol, err)
	}
	return fmt.Errorf("%w: %v", ErrAgentCall, err)
}

// executionFailure maps a failed Result, preferring cancellation, then
// timeout, then plain failure. A successful result maps to nil.
func (e *Engine) executionFailure(ctx context.Context, res execution.Result) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if res.TimedOut {
		return fmt.Errorf("%w: %s", ErrExecutionTimedOut, res.Stderr)
	}
	if !res.Succeeded {
		return fmt.Errorf("%w: %s", ErrExecutionFailed, res.Stderr)
	}
	return nil
}

// userMessage renders one specific message per error kind; nothing maps to
// a generic "something went wrong".
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsafeScript):
		return "Cannot perform that operation."
	case errors.Is(err, ErrClassificationRejected):
		return "Cannot access that location."
	case errors.Is(err, ErrExecutionTimedOut):
		return trimPrefixErr(err, ErrExecutionTimedOut)
	case errors.Is(err, ErrExecutionFailed):
		return fmt.Sprintf("Script execution failed: %s", trimPrefixErr(err, ErrExecutionFailed))
	case errors.Is(err, ErrOutputTooLarge):
		return trimPrefixErr(err, ErrOutputTooLarge)
	case errors.Is(err, ErrAgentProtocol):
		return "The AI returned a malformed response. Try rephrasing your request."
	case errors.Is(err, ErrAgentCall):
		return fmt.Sprintf("AI request failed: %s", trimPrefixErr(err, ErrAgentCall))
	case errors.Is(err, ErrInputTooLong):
		return "Input too long."
	case errors.Is(err, ErrBusy):
		return "Another request is already running."
	default:
		return err.Error()
	}
}

// trimPrefixErr strips the sentinel prefix from a wrapped error so the
// inner detail can be shown on its own.
func trimPrefixErr(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

