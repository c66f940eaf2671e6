package app

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/entrepeneur4lyf/chatgate/internal/config"
	"github.com/entrepeneur4lyf/chatgate/internal/llm/providers"
	"github.com/entrepeneur4lyf/chatgate/internal/ratelimit"
	"github.com/entrepeneur4lyf/chatgate/internal/session"
	"github.com/entrepeneur4lyf/chatgate/internal/verification"
)

// App wires the long-lived services behind the API surface.
type App struct {
	Config *config.Config
	Logger *log.Logger

	// BuildHandler constructs provider adapters for session-independent
	// calls like connection probes; the pool carries its own copy.
	BuildHandler session.BuildFunc

	Pool         *session.Pool
	Orchestrator *session.Orchestrator

	// Verifier is nil when no store connection is configured; the API
	// layer reports the verification service unavailable in that case.
	Verifier *verification.Service
	Limiter  *ratelimit.Limiter
}

// New builds the application from configuration. A missing or malformed
// store connection disables verification rather than failing startup so
// the chat surface stays usable in local development.
func New(cfg *config.Config) (*App, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "chatgate",
	})
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	pool := session.NewDefaultPool()

	a := &App{
		Config:       cfg,
		Logger:       logger,
		BuildHandler: providers.BuildChatHandler,
		Pool:         pool,
		Orchestrator: session.NewOrchestrator(pool),
		Limiter:      ratelimit.NewLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window),
	}

	if cfg.Store.Connection == "" {
		logger.Warn("no store connection configured, verification disabled")
		return a, nil
	}

	configID, err := verification.ParseConfigID(cfg.Store.Connection)
	if err != nil {
		logger.Warn("invalid store connection string, verification disabled", "error", err)
		return a, nil
	}

	store := verification.NewEdgeConfigClient(configID, cfg.Store.APIToken)
	a.Verifier = verification.NewService(store)

	return a, nil
}
