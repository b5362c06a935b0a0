package app

import (
	"fmt"
	"time"

	"yuanfang/internal/analytics"
	"yuanfang/internal/compose"
	"yuanfang/internal/config"
	"yuanfang/internal/dispatch"
	yferrors "yuanfang/internal/errors"
	"yuanfang/internal/intent"
	"yuanfang/internal/llm"
	"yuanfang/internal/logging"
	"yuanfang/internal/memory"
	"yuanfang/internal/observability"
	"yuanfang/internal/session"
	"yuanfang/internal/speech"
	"yuanfang/internal/store"
	"yuanfang/internal/toolregistry"
	"yuanfang/internal/tools/builtin"
)

// App wires the assistant's components from configuration. Construct with
// New, release with Close.
type App struct {
	Config     config.Config
	Controller *session.Controller
	Store      store.Store
	Speech     *speech.Client
	Logger     logging.Logger

	durable memory.DurableStore
}

// New builds the full pipeline. The LLM client is optional: without an API
// key the router relies on keyword matching and the composer on templated
// replies.
func New(cfg config.Config, logger logging.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}

	var client llm.Client
	if cfg.LLM.APIKey != "" {
		base, err := llm.NewOpenAIClient(llm.Config{
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			TimeoutSecs: int(cfg.LLM.Timeout / time.Second),
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		client = llm.NewRetryClient(base, yferrors.DefaultRetryConfig())
	} else {
		logger.Warn("app: no LLM API key, running with keyword routing and templated replies")
	}

	engine := analytics.NewEngine(st, cfg.Analytics, logging.NewComponentLogger("analytics"))
	registry, err := toolregistry.NewRegistry(
		builtin.NewEmotionTool(),
		builtin.NewTaskTool(st),
		builtin.NewKnowledgeTool(st),
		builtin.NewTeamAnalyticsTool(engine, cfg.Analytics),
	)
	if err != nil {
		st.Close()
		return nil, err
	}

	router := intent.NewRouter(registry, client, cfg.Router.ConfidenceThreshold, logging.NewComponentLogger("intent"))
	dispatcher, err := dispatch.NewDispatcher(registry, cfg.Dispatch, logging.NewComponentLogger("dispatch"))
	if err != nil {
		st.Close()
		return nil, err
	}

	var durable memory.DurableStore
	if cfg.Memory.PersistPath != "" {
		durable, err = memory.NewChromemStore(cfg.Memory.PersistPath)
		if err != nil {
			// Durable memory is an enhancement, not a requirement.
			logger.Warn("app: durable memory unavailable, continuing ephemeral: %v", err)
			durable = nil
		}
	}
	manager := memory.NewManager(cfg.Memory, durable, logging.NewComponentLogger("memory"))

	composer := compose.NewComposer(client, logging.NewComponentLogger("compose"))
	controller := session.NewController(
		session.NewRegistry(),
		router,
		dispatcher,
		composer,
		manager,
		st,
		observability.DefaultMetrics(),
		logging.NewComponentLogger("session"),
	)

	return &App{
		Config:     cfg,
		Controller: controller,
		Store:      st,
		Speech:     speech.NewClient(cfg.Speech, logging.NewComponentLogger("speech")),
		Logger:     logger,
		durable:    durable,
	}, nil
}

// Close releases the store and durable memory.
func (a *App) Close() error {
	var firstErr error
	if a.durable != nil {
		if err := a.durable.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite", "":
		return store.NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.Driver)
	}
}
