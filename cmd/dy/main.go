package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/raytonc/dy/internal/agents"
	"github.com/raytonc/dy/internal/channels"
	"github.com/raytonc/dy/internal/config"
	"github.com/raytonc/dy/internal/execution"
	"github.com/raytonc/dy/internal/history"
	"github.com/raytonc/dy/internal/safety"
	"github.com/raytonc/dy/internal/workflow"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

// App holds all the runtime components
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Engine  *workflow.Engine
	Journal *history.Store
	TUI     *channels.TUIChannel
	Sandbox string
	logFile *os.File
}

func main() {
	os.Exit(run())
}

func run() int {
	for _, arg := range os.Args[1:] {
		switch arg {
		case "--version", "-v":
			fmt.Printf("dy v%s (built %s)\n", version, buildTime)
			fmt.Println("AI filesystem assistant for your user directory")
			return 0
		case "--help", "-h":
			printUsage()
			return 0
		}
	}

	if len(os.Args) > 1 && os.Args[1] == "history" {
		return historyCommand()
	}
	if len(os.Args) > 1 {
		fmt.Fprintf(os.Stderr, "Unknown argument: %s\n", os.Args[1])
		printUsage()
		return 1
	}

	// The sandbox is the directory dy is launched from, and it must live
	// under the machine's user-directory root.
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot determine working directory: %v\n", err)
		return 1
	}
	root := usersRoot()
	guard := safety.NewSandbox(root)
	if within, ok := guard.Contains(cwd); !ok || !within {
		fmt.Fprintf(os.Stderr, "dy must be run from a directory under %s\n", root)
		fmt.Fprintf(os.Stderr, "Current directory: %s\n", cwd)
		return 1
	}

	app, err := setup(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.TUI.Run(ctx); err != nil {
		if ctx.Err() != nil {
			app.Logger.Info("interrupted")
			return 130
		}
		app.Logger.Error("TUI failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if ctx.Err() != nil {
		return 130
	}

	app.Logger.Info("dy stopped")
	return 0
}

// setup initializes all runtime components for the given sandbox directory.
func setup(sandbox string) (*App, error) {
	app := &App{Sandbox: sandbox}

	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}
	app.Config = cfg

	// The TUI owns the terminal, so logs go to a file under the data dir.
	logPath := filepath.Join(cfg.DataDir, "dy.log")
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	app.logFile = logFile
	app.Logger = slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	app.Logger.Info("starting dy", "version", version, "sandbox", sandbox)

	journal, err := history.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	app.Journal = journal

	provider := agents.NewAnthropicClient(cfg.APIKey, cfg.Model)
	agentSet, err := agents.New(provider, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("create agents: %w", err)
	}

	app.Engine = workflow.New(workflow.Params{
		Sandbox:      sandbox,
		Agent:        agentSet,
		Runner:       execution.NewRunner(sandbox, app.Logger),
		Guard:        execution.NewGuard(cfg.MaxOutputSize),
		Journal:      journal,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		Logger:       app.Logger,
	})

	app.TUI = channels.NewTUI(app.Logger, app.Engine, sandbox)
	return app, nil
}

func (a *App) close() {
	if a.Journal != nil {
		a.Journal.Close()
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// loadConfig reads the config file, creating it with defaults on first run.
func loadConfig() (*config.Config, error) {
	path := filepath.Join(config.DefaultConfig().DataDir, "config.json")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("save default config: %w", err)
		}
	}
	return cfg, nil
}

// historyCommand prints the most recent runs from the journal.
func historyCommand() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	store, err := history.Open(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	runs, err := store.Recent(context.Background(), 20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return 0
	}

	for _, r := range runs {
		outcome := "failed"
		if r.Succeeded {
			outcome = "ok"
		} else if r.Mode == "task" && !r.Approved && r.Detail == "declined at approval" {
			outcome = "declined"
		}
		fmt.Printf("%s  %-5s  %-8s  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Mode, outcome, r.Request)
	}
	return 0
}

// usersRoot is the platform's user-directory root; dy refuses to operate
// outside it.
func usersRoot() string {
	switch runtime.GOOS {
	case "windows":
		return `C:\Users`
	case "darwin":
		return "/Users"
	default:
		return "/home"
	}
}

func printUsage() {
	fmt.Printf("dy v%s - AI filesystem assistant\n\n", version)
	fmt.Println("Usage:")
	fmt.Println("  dy            Start the interactive assistant in the current directory")
	fmt.Println("  dy history    Show recent runs")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -v, --version    Print version")
	fmt.Println("  -h, --help       Print this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Printf("  %-22s  Anthropic API key (required)\n", config.EnvAPIKey)
	fmt.Printf("  %-22s  Model identifier\n", config.EnvModel)
	fmt.Printf("  %-22s  Output cap in characters\n", config.EnvMaxOutput)
	fmt.Printf("  %-22s  Read execution timeout (seconds)\n", config.EnvReadTimeout)
	fmt.Printf("  %-22s  Write execution timeout (seconds)\n", config.EnvWriteTimeout)
	fmt.Println()
	fmt.Println("dy runs inside the directory you launch it from. Queries answer")
	fmt.Println("questions about your files; tasks change files after your approval.")
}
