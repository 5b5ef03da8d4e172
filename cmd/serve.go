package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/leadline/internal/api"
	"github.com/leadline/internal/api/auth"
	"github.com/leadline/internal/budget"
	"github.com/leadline/internal/cache"
	"github.com/leadline/internal/config"
	"github.com/leadline/internal/database"
	"github.com/leadline/internal/followup"
	"github.com/leadline/internal/lead"
	"github.com/leadline/internal/logging"
	"github.com/leadline/internal/memory"
	"github.com/leadline/internal/responder"
	"github.com/leadline/internal/session"
	"github.com/leadline/internal/store"
	"github.com/leadline/internal/whatsapp"
)

// ServeCommand returns the CLI command for starting the server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the webhook and admin API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Init(cfg.Log.Level, cfg.Log.Format)

	port := cfg.Server.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	// Durable store is the only fatal dependency.
	db, err := database.NewDB(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	// Cache is best effort. A dead Redis means cold sessions and an
	// open budget gate, not a dead server.
	var kv cache.Cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		log.Warn().Err(err).Msg("Cache unavailable, running degraded")
		kv = cache.Noop{}
	} else {
		kv = redisCache
		defer redisCache.Close()
	}

	users := store.NewUserRepo(db)
	convs := store.NewConversationRepo(db)
	messages := store.NewMessageRepo(db)
	leadRepo := store.NewLeadRepo(db)
	admins := store.NewAdminRepo(db)

	sessions := session.NewResolver(users, convs, kv)
	leadService := lead.NewService(leadRepo, users)

	sender, err := whatsapp.NewClient(cfg.WhatsApp.BaseURL, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.AccessToken, cfg.WhatsApp.SendTimeout)
	if err != nil {
		return fmt.Errorf("failed to create messaging client: %w", err)
	}

	llm, err := responder.NewChatModel(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		log.Warn().Err(err).Msg("Model unavailable, generative replies disabled")
		llm = nil
	}

	governor := budget.NewGovernor(kv, cfg.AI.DailyTokenBudget, cfg.AI.MaxCallsPerUserHour)
	mem := memory.NewStore(kv)
	replies := responder.New(llm, governor, mem, cfg.AI.MaxTokens, cfg.AI.Temperature, cfg.AI.Timeout)

	// Follow-up queue shares Postgres with the store, via its own pool.
	var scheduler api.Scheduler
	worker := followup.NewWorker(leadRepo, sender)
	queue, err := followup.NewQueue(cfg.Database.URL, worker, leadRepo, cfg.FollowUp.MaxWorkers, cfg.FollowUp.MaxAttempts)
	if err != nil {
		log.Warn().Err(err).Msg("Follow-up queue unavailable, scheduling disabled")
	} else {
		if err := queue.Start(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Failed to start follow-up workers, scheduling disabled")
		} else {
			scheduler = queue
			defer queue.Stop(context.Background())
		}
	}

	processor := api.NewProcessor(sessions, messages, leadService, users, replies, sender, scheduler, cfg.FollowUp.Delay)
	webhook := api.NewWebhookHandler(cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret, cfg.WhatsApp.VerifySignature, processor)

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authHandlers := auth.NewHandlers(admins, tokens)

	server := api.NewServer(api.ServerConfig{
		Port:         port,
		Webhook:      webhook,
		Sessions:     sessions,
		Messages:     messages,
		Leads:        leadService,
		LeadStore:    leadRepo,
		ConvStore:    convs,
		Scheduler:    scheduler,
		AuthHandlers: authHandlers,
		Tokens:       tokens,
	})

	log.Info().Int("port", port).Str("environment", cfg.Environment).Msg("Starting server")
	return server.Start()
}
