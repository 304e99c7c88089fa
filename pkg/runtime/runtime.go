// Package runtime assembles a scout process from configuration. Every
// long-lived component is built once, in dependency order, and exposed
// through the Runtime; Close tears them down in reverse. The serve,
// research, and ingest commands all start here.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/veraxis/scout/pkg/agent"
	"github.com/veraxis/scout/pkg/config"
	"github.com/veraxis/scout/pkg/embedder"
	"github.com/veraxis/scout/pkg/index"
	"github.com/veraxis/scout/pkg/ingest"
	"github.com/veraxis/scout/pkg/llms"
	"github.com/veraxis/scout/pkg/logger"
	"github.com/veraxis/scout/pkg/memory"
	"github.com/veraxis/scout/pkg/model"
	"github.com/veraxis/scout/pkg/observability"
	"github.com/veraxis/scout/pkg/reasoning"
	"github.com/veraxis/scout/pkg/retriever"
	"github.com/veraxis/scout/pkg/session"
	"github.com/veraxis/scout/pkg/tools"
	"github.com/veraxis/scout/pkg/trace"
	"github.com/veraxis/scout/pkg/vector"
)

// Runtime holds the assembled components of one scout process.
type Runtime struct {
	cfg *config.Config

	observability *observability.Manager
	provider      llms.Provider
	store         *index.Store
	pipeline      *ingest.Pipeline
	retriever     retriever.Retriever
	registry      *tools.ToolRegistry
	executor      *tools.Executor
	memory        memory.Strategy
	summaryCache  *memory.SummaryCache
	sessions      *session.Service
	broadcast     *trace.BroadcastSink
	sink          trace.Sink
	engine        *agent.Engine
}

// New builds a runtime from the given config. The config must already
// have passed ProcessConfigPipeline. On error, everything built so far
// is released.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	initLogger(cfg.Logging)

	r := &Runtime{cfg: cfg}
	if err := r.build(ctx); err != nil {
		if closeErr := r.Close(); closeErr != nil {
			slog.Warn("Cleanup after failed startup reported errors", "error", closeErr)
		}
		return nil, err
	}
	return r, nil
}

func (r *Runtime) build(ctx context.Context) error {
	cfg := r.cfg

	r.observability = observability.NewManager(cfg.Observability)
	if err := r.observability.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	provider, err := llms.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize llm provider: %w", err)
	}
	r.provider = provider

	if err := r.buildIndex(); err != nil {
		return err
	}
	r.pipeline = ingest.NewPipeline(r.store, cfg.Ingest)

	var reranker retriever.Reranker
	if cfg.Retriever.Rerank.Enabled {
		reranker = retriever.NewLLMReranker(r.provider)
	}
	r.retriever = retriever.NewHybrid(r.store, reranker, cfg.Retriever)

	if err := r.buildTools(ctx); err != nil {
		return err
	}

	if err := r.buildMemory(); err != nil {
		return err
	}

	sessionStore, err := buildSessionStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	r.sessions, err = session.NewService(sessionStore)
	if err != nil {
		return fmt.Errorf("failed to build session service: %w", err)
	}

	// Summary rewrites leave an audit record in the session log. System
	// messages are excluded from memory assembly, so this cannot feed
	// back into the summary itself.
	if sb, ok := r.memory.(*memory.SummaryBuffer); ok {
		sessions := r.sessions
		sb.SetRecorder(func(ctx context.Context, sessionID, summary string) error {
			msg := model.NewMessage(model.RoleSystem, "conversation summary updated: "+summary)
			return sessions.AppendMessage(ctx, sessionID, msg)
		})
	}

	r.broadcast = trace.NewBroadcastSink()
	r.sink = trace.NewSinkFromConfig(cfg.Trace, logger.GetLogger(), r.broadcast)

	backend := reasoning.NewReActBackend(r.provider, r.registry.ListTools(), cfg.Reasoning)

	engine, err := agent.NewEngine(cfg.Reasoning, agent.Deps{
		Backend:   backend,
		Executor:  r.executor,
		Retriever: r.retriever,
		Resolver:  r.store,
		Memory:    r.memory,
		Sessions:  r.sessions,
		Sink:      r.sink,
	})
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	r.engine = engine

	return nil
}

// buildIndex wires embedder, vector provider, and keyword index into
// the index store. The store owns all three; failures before the store
// exists close the pieces built so far inline.
func (r *Runtime) buildIndex() error {
	cfg := r.cfg

	emb, err := embedder.NewEmbedder(cfg.Embedder)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vec, err := vector.NewProvider(cfg.Vector)
	if err != nil {
		_ = emb.Close()
		return fmt.Errorf("failed to initialize vector provider: %w", err)
	}

	keyword, err := index.NewKeywordIndex(cfg.Keyword)
	if err != nil {
		_ = vec.Close()
		_ = emb.Close()
		return fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	r.store = index.NewStore(emb, vec, keyword, cfg.Vector.Collection)
	return nil
}

func (r *Runtime) buildTools(ctx context.Context) error {
	sources, err := tools.NewSourcesFromConfig(r.cfg.Tools)
	if err != nil {
		return fmt.Errorf("failed to build tool sources: %w", err)
	}

	r.registry = tools.NewToolRegistry()
	for _, source := range sources {
		if err := r.registry.RegisterSource(ctx, source); err != nil {
			return fmt.Errorf("failed to register tool source %q: %w", source.GetName(), err)
		}
	}
	r.registry.Freeze()

	r.executor = tools.NewExecutor(r.registry, r.cfg.Tools)
	return nil
}

func (r *Runtime) buildMemory() error {
	var cache memory.SummaryStore
	if r.cfg.Memory.Redis.Enabled {
		r.summaryCache = memory.NewSummaryCache(r.cfg.Memory.Redis)
		cache = r.summaryCache
	}

	strategy, err := memory.NewStrategyFromConfig(r.cfg.Memory, r.provider, cache)
	if err != nil {
		return fmt.Errorf("failed to build memory strategy: %w", err)
	}
	r.memory = strategy
	return nil
}

func buildSessionStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Store {
	case config.SessionStoreSQL:
		return session.NewSQLStoreFromConfig(cfg.SQL)
	default:
		return session.NewMemoryStore(), nil
	}
}

// ============================================================================
// ACCESSORS
// ============================================================================

func (r *Runtime) Config() *config.Config { return r.cfg }

func (r *Runtime) Engine() *agent.Engine { return r.engine }

func (r *Runtime) Sessions() *session.Service { return r.sessions }

func (r *Runtime) Pipeline() *ingest.Pipeline { return r.pipeline }

func (r *Runtime) Store() *index.Store { return r.store }

func (r *Runtime) Retriever() retriever.Retriever { return r.retriever }

func (r *Runtime) Registry() *tools.ToolRegistry { return r.registry }

func (r *Runtime) Executor() *tools.Executor { return r.executor }

func (r *Runtime) Provider() llms.Provider { return r.provider }

func (r *Runtime) Memory() memory.Strategy { return r.memory }

func (r *Runtime) Broadcast() *trace.BroadcastSink { return r.broadcast }

func (r *Runtime) Sink() trace.Sink { return r.sink }

func (r *Runtime) Observability() *observability.Manager { return r.observability }

// Close releases components in reverse build order. The first error
// wins; later failures are logged.
func (r *Runtime) Close() error {
	var firstErr error
	record := func(part string, err error) {
		if err == nil {
			return
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", part, err)
		} else {
			slog.Warn("Shutdown error", "component", part, "error", err)
		}
	}

	if r.broadcast != nil {
		record("trace broadcast", r.broadcast.Close())
	}
	if r.sessions != nil {
		record("session store", r.sessions.Close())
	}
	if r.summaryCache != nil {
		record("summary cache", r.summaryCache.Close())
	}
	if r.store != nil {
		record("index store", r.store.Close())
	}
	if r.provider != nil {
		record("llm provider", r.provider.Close())
	}
	if r.observability != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		record("observability", r.observability.Shutdown(ctx))
	}
	return firstErr
}

// ============================================================================
// LOGGING
// ============================================================================

func initLogger(cfg config.LoggingConfig) {
	cfg.SetDefaults()

	output := os.Stderr
	switch cfg.Output {
	case "", "stderr":
	case "stdout":
		output = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Init(parseLevel(cfg.Level), os.Stderr, cfg.Format)
			slog.Warn("Failed to open log file, using stderr", "path", cfg.Output, "error", err)
			return
		}
		output = f
	}

	logger.Init(parseLevel(cfg.Level), output, cfg.Format)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
