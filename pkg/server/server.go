// Package server assembles the agent console: storage, the agent registry,
// chat sessions, the evaluation engine and the HTTP API.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/agentoven/console/internal/api"
	"github.com/agentoven/console/internal/api/handlers"
	"github.com/agentoven/console/internal/chat"
	"github.com/agentoven/console/internal/config"
	"github.com/agentoven/console/internal/eval"
	"github.com/agentoven/console/internal/gemini"
	"github.com/agentoven/console/internal/judge"
	"github.com/agentoven/console/internal/notify"
	"github.com/agentoven/console/internal/publish"
	"github.com/agentoven/console/internal/registry"
	"github.com/agentoven/console/internal/remote"
	"github.com/agentoven/console/internal/retention"
	"github.com/agentoven/console/internal/store"
	"github.com/agentoven/console/internal/telemetry"
	"github.com/agentoven/console/pkg/models"

	"github.com/rs/zerolog/log"
)

// Server holds the initialized console.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	Store    store.Store
	Config   *config.Config
	Registry *registry.Registry
	Chat     *chat.Manager
	Eval     *eval.Engine

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc flushes telemetry and releases backend resources.
	ShutdownFunc func(context.Context) error
}

// New loads configuration from the environment and builds the server.
func New(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig builds the server from an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdownTelemetry, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore, err := store.Open(store.Driver(cfg.Store.Driver), cfg.Store.Location)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := dataStore.Ping(ctx); err != nil {
		dataStore.Close()
		return nil, fmt.Errorf("ping store: %w", err)
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("✅ Store initialized")

	settings := remote.NewSettings(ctx, dataStore, models.ConnectionSettings{
		BaseURL: strings.TrimRight(cfg.Remote.BaseURL, "/"),
		APIKey:  cfg.Remote.APIKey,
	})
	rc := remote.NewClient(settings)

	// The judge degrades to its fallback verdicts without a model.
	var judgeBackend judge.Backend
	gem, err := gemini.NewClient(ctx, cfg.Gemini)
	if err != nil {
		log.Warn().Err(err).Msg("Gemini unavailable; judge will return fallback verdicts")
	} else {
		judgeBackend = gem
		log.Info().Str("model", gem.Name()).Msg("✅ Judge initialized")
	}
	jdg := judge.New(judgeBackend, cfg.Gemini.RPS, cfg.Gemini.Burst)

	reg := registry.New(ctx, dataStore)
	log.Info().Int("agents", len(reg.List())).Msg("✅ Agent registry initialized")

	opts := chat.Options{
		Store:     dataStore,
		Agents:    reg,
		Suggester: jdg,
		Language:  cfg.Chat.Language,
	}
	var adapter *remote.ChatAdapter
	if cfg.Chat.Backend == "gemini" && gem != nil {
		opts.Generator = gem
	} else {
		if cfg.Chat.Backend == "gemini" {
			log.Warn().Msg("Gemini chat backend unavailable; chatting through the remote backend")
		}
		adapter, err = remote.NewChatAdapter(rc, cfg.Chat.RemoteSessionCache)
		if err != nil {
			dataStore.Close()
			return nil, err
		}
		opts.Generator = adapter
		opts.OnSessionDeleted = adapter.Forget
		opts.Preflight = func() error {
			if settings.ConnectionSettings().BaseURL == "" {
				return remote.ErrNotConfigured
			}
			return nil
		}
	}
	cm := chat.NewManager(ctx, opts)
	log.Info().Str("backend", generatorName(adapter)).Msg("✅ Chat sessions initialized")

	pub := publish.Fanout{publish.New(cfg.Kafka)}
	if cfg.Notify.WebhookURL != "" {
		pub = append(pub, notify.NewWebhookPublisher(cfg.Notify))
		log.Info().Str("url", cfg.Notify.WebhookURL).Msg("🔔 Posting evaluation runs to webhook")
	}
	ev := eval.New(ctx, eval.Options{
		Store:     dataStore,
		Backend:   rc,
		Judge:     jdg,
		Agents:    reg,
		Publisher: pub,
		Workers:   cfg.Eval.Workers,
	})
	log.Info().Int("workers", cfg.Eval.Workers).Msg("✅ Evaluation engine initialized")

	stopJanitor := func() {}
	if cfg.Retention.Days > 0 {
		var archiver retention.Archiver
		if cfg.Retention.Archive {
			archiver = retention.NewLocalFileArchiver(cfg.Retention.ArchiveDir, cfg.Retention.Compress)
		}
		janitor := retention.NewJanitor(ev, archiver, cfg.Retention.Days, cfg.Retention.Interval)
		jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		go janitor.Start(jctx)
		stopJanitor = cancel
	}

	h := handlers.New(reg, cm, ev, jdg, settings, rc)
	router := api.NewRouter(cfg, h)

	shutdown := func(ctx context.Context) error {
		stopJanitor()
		if adapter != nil {
			adapter.Close()
		}
		return errors.Join(pub.Close(), shutdownTelemetry(ctx))
	}

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Config:       cfg,
		Registry:     reg,
		Chat:         cm,
		Eval:         ev,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

func generatorName(adapter *remote.ChatAdapter) string {
	if adapter != nil {
		return "remote"
	}
	return "gemini"
}
