package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"loom/internal/agent"
	"loom/internal/api"
	"loom/internal/config"
	"loom/internal/events"
	"loom/internal/mesh"
	"loom/internal/metatools"
	"loom/internal/provider"
	"loom/internal/task"
	"loom/internal/thread"
	"loom/internal/workflow"
	"loom/pkg/logging"
)

// Application bootstraps the engine: configuration, storage, the
// provider mesh, the tool catalog, the agent loop and the orchestrator,
// all registered with the central API layer.
type Application struct {
	cfg      *Config
	loomCfg  config.LoomConfig
	services *Services
}

// Services holds the wired subsystems.
type Services struct {
	Store        task.Store
	Tasks        *task.Adapter
	Sweeper      *task.Sweeper
	Pool         *provider.Pool
	Catalog      *mesh.Catalog
	Loop         *agent.Loop
	Events       *events.Generator
	Workflows    *workflow.Manager
	Dispatcher   *workflow.Dispatcher
	Threads      *thread.Manager
	Orchestrator *workflow.Orchestrator
}

// NewApplication performs the bootstrap sequence: logging, engine
// configuration, subsystem construction and handler registration.
// Definitions and provider connections are not touched until Start.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = logging.LevelDebug
	}
	// stdout may carry an MCP transport or a command's result payload;
	// logs always go to stderr
	var logOutput io.Writer = os.Stderr
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.Init(level, logOutput)

	if cfg.ConfigPath == "" {
		cfg.ConfigPath = config.GetDefaultConfigPathOrPanic()
	}

	loomCfg, err := config.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", cfg.ConfigPath, err)
	}

	app := &Application{cfg: cfg, loomCfg: loomCfg}
	app.services = app.buildServices()
	app.services.register()
	return app, nil
}

func (a *Application) buildServices() *Services {
	engine := a.loomCfg.Engine

	store := task.NewFileStore(a.cfg.ConfigPath)
	pool := provider.NewPool()
	catalog := mesh.NewCatalog(pool, pool, 0)
	for _, lt := range a.cfg.LocalTools {
		catalog.RegisterLocal(lt)
	}

	llm := a.cfg.LLM
	if llm == nil {
		llm = unavailableLLM{}
	}
	loop := agent.NewLoop(llm, catalog, metatools.NewProvider().Tools(), engine)

	eventGen := events.NewGenerator(a.cfg.Events)
	workflows := workflow.NewManager(a.cfg.ConfigPath, a.cfg.BuiltinWorkflowsPath, eventGen)
	dispatcher := workflow.NewDispatcher(catalog, pool, loop)
	threads := thread.NewManager(store, eventGen, engine.ThreadTTL, engine.MaxHistoryTurns)
	orchestrator := workflow.NewOrchestrator(workflows, dispatcher, catalog, store, threads, eventGen, engine)

	return &Services{
		Store:        store,
		Tasks:        task.NewAdapter(store),
		Sweeper:      task.NewSweeper(store, engine.SweepInterval),
		Pool:         pool,
		Catalog:      catalog,
		Loop:         loop,
		Events:       eventGen,
		Workflows:    workflows,
		Dispatcher:   dispatcher,
		Threads:      threads,
		Orchestrator: orchestrator,
	}
}

// register wires every subsystem into the central API layer.
func (s *Services) register() {
	s.Tasks.Register()
	s.Workflows.Register()
	s.Threads.Register()
	s.Orchestrator.Register()
	mesh.NewAdapter(s.Catalog).Register()
}

// Services exposes the wired subsystems.
func (a *Application) Services() *Services {
	return a.services
}

// EngineConfig returns the effective engine configuration.
func (a *Application) EngineConfig() config.EngineConfig {
	return a.loomCfg.Engine
}

// Start loads workflow definitions, connects the provider mesh and
// starts the background workers. Watch failures are non-fatal: a
// deployment without a watchable definitions directory still serves.
func (a *Application) Start(ctx context.Context) error {
	if err := a.services.Workflows.LoadDefinitions(); err != nil {
		return fmt.Errorf("failed to load workflow definitions: %w", err)
	}
	if err := a.services.Workflows.Watch(ctx); err != nil {
		logging.Warn("Bootstrap", "Definition hot-reload disabled: %v", err)
	}

	specs, err := provider.LoadSpecs(a.cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load provider definitions: %w", err)
	}
	a.services.Pool.Connect(ctx, specs)

	a.services.Sweeper.Start(ctx)

	logging.Info("Bootstrap", "Engine ready (config: %s)", a.cfg.ConfigPath)
	return nil
}

// Stop shuts down the provider connections.
func (a *Application) Stop() {
	a.services.Pool.Close()
}

// unavailableLLM stands in when no host LLM is wired. Workflows without
// llm steps run normally; llm steps fail with a clear error.
type unavailableLLM struct{}

func (unavailableLLM) Generate(ctx context.Context, model api.ModelTier, messages []api.ChatMessage, tools []mcp.Tool) (*api.LLMResponse, error) {
	return nil, fmt.Errorf("no llm client configured")
}
