package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/zapllo/crm-backend/internal/auth"
	"github.com/zapllo/crm-backend/internal/cache"
	"github.com/zapllo/crm-backend/internal/config"
	"github.com/zapllo/crm-backend/internal/db"
	"github.com/zapllo/crm-backend/internal/followup"
	"github.com/zapllo/crm-backend/internal/lead"
	"github.com/zapllo/crm-backend/internal/middleware"
	"github.com/zapllo/crm-backend/internal/notifications"
	"github.com/zapllo/crm-backend/internal/organization"
	"github.com/zapllo/crm-backend/internal/pipeline"
	"github.com/zapllo/crm-backend/internal/quotation"
	"github.com/zapllo/crm-backend/internal/validation"
	"github.com/zapllo/crm-backend/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	}

	jwtManager := &auth.Manager{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  time.Duration(cfg.AccessTTLMinutes) * time.Minute,
		RefreshTTL: time.Duration(cfg.RefreshTTLMinutes) * time.Minute,
		Issuer:     "crm-backend",
	}

	val := validation.New()

	mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	if mailer == nil {
		logger.Info("brevo mailer disabled")
	} else {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	}

	whatsapp := notifications.NewWhatsAppClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
	if whatsapp == nil {
		logger.Info("whatsapp sender disabled")
	} else {
		logger.Info("whatsapp sender enabled", slog.String("from", cfg.TwilioWhatsAppFrom))
	}

	orgRepo := organization.NewRepository(cols.Organizations, cols.Users)
	orgService := organization.NewService(orgRepo, cfg.Timezone)
	orgHandler := organization.NewHandler(orgService, jwtManager, val, logger, cfg.CookieSecure)

	pipelineRepo := pipeline.NewRepository(cols.Pipelines)
	pipelineService := pipeline.NewService(pipelineRepo, cfg.Timezone)
	pipelineHandler := pipeline.NewHandler(pipelineService, val, logger)

	leadRepo := lead.NewRepository(cols.Leads)
	leadService := lead.NewService(leadRepo, pipelineService, cfg.Timezone)
	leadHandler := lead.NewHandler(leadService, val, logger)

	followupRepo := followup.NewRepository(cols.Followups)
	followupService := followup.NewService(followupRepo, leadService, cfg.Timezone)
	followupHandler := followup.NewHandler(followupService, val, logger)

	var reminderEmail followup.EmailSender
	if mailer != nil {
		reminderEmail = mailer
	}
	var reminderWhatsApp followup.WhatsAppSender
	if whatsapp != nil {
		reminderWhatsApp = whatsapp
	}
	dispatcher := followup.NewDispatcher(followupRepo, leadService, orgService, reminderEmail, reminderWhatsApp, cfg.ReminderScanSpec, logger)

	quotationRepo := quotation.NewRepository(cols.Quotations)
	quotationService := quotation.NewService(quotationRepo, leadService, cfg.Timezone, cfg.QuotationRejectHistoryStatus)
	var decisionNotifier quotation.DecisionNotifier
	if mailer != nil {
		decisionNotifier = mailer
	}
	quotationHandler := quotation.NewHandler(quotationService, orgService, decisionNotifier, val, logger)

	walletRepo := wallet.NewRepository(cols.Wallets)
	walletService := wallet.NewService(walletRepo, orgRepo, cacheStore, time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.WalletCurrency, logger)
	stripeProcessor := wallet.NewStripeProcessor(cfg.StripeSecretKey, cfg.StripeWebhookSecret, strings.ToLower(cfg.WalletCurrency))
	walletHandler := wallet.NewHandler(walletService, stripeProcessor, val, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	authLimiter := middleware.NewRateLimiter(cfg.RateLimitAuth, time.Duration(cfg.RateLimitWindowSec)*time.Second)
	writesLimiter := middleware.NewRateLimiter(cfg.RateLimitWrites, time.Duration(cfg.RateLimitWindowSec)*time.Second)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(a chi.Router) {
			a.With(authLimiter.Middleware).Post("/signup", orgHandler.Signup)
			a.With(authLimiter.Middleware).Post("/login", orgHandler.Login)
			a.Post("/refresh", orgHandler.Refresh)
			a.Post("/logout", orgHandler.Logout)
		})

		api.Post("/webhooks/stripe", walletHandler.HandleStripeWebhook)

		api.Group(func(protected chi.Router) {
			protected.Use(middleware.Auth(jwtManager))
			protected.Use(writesLimiter.Middleware)

			protected.Get("/organization", orgHandler.Get)
			protected.With(middleware.RequireAdmin).Patch("/organization/features", orgHandler.UpdateFeatures)

			protected.Get("/users", orgHandler.ListUsers)
			protected.With(middleware.RequireAdmin).Post("/users", orgHandler.CreateUser)

			protected.Route("/pipelines", func(p chi.Router) {
				p.Post("/", pipelineHandler.Create)
				p.Get("/", pipelineHandler.List)
				p.Get("/{id}", pipelineHandler.Get)
				p.Delete("/{id}", pipelineHandler.Delete)
				p.Post("/{id}/stages", pipelineHandler.AddStage)
				p.Patch("/{id}/stages/bulk-delete", pipelineHandler.BulkDeleteStages)
				p.Patch("/{id}/custom-fields", pipelineHandler.AddCustomField)
			})

			protected.Route("/leads", func(l chi.Router) {
				l.Post("/", leadHandler.Create)
				l.Get("/", leadHandler.List)
				l.Get("/report", leadHandler.Report)
				l.Get("/{id}", leadHandler.Get)
				l.Patch("/{id}", leadHandler.CloseFollowup)
				l.Patch("/{id}/stage", leadHandler.MoveStage)
				l.Patch("/{id}/assign", leadHandler.Assign)
				l.Post("/{id}/timeline", leadHandler.AppendTimelineEntry)
				l.Get("/{id}/followups", followupHandler.ListForLead)
				l.Get("/{id}/quotations", quotationHandler.ListForLead)
			})

			protected.Route("/followups", func(f chi.Router) {
				f.Post("/", followupHandler.Create)
				f.Get("/mine", followupHandler.ListMine)
				f.Patch("/{id}", followupHandler.Update)
				f.Post("/{id}/close", followupHandler.Close)
				f.Delete("/{id}", followupHandler.Delete)
			})

			protected.Route("/quotations", func(q chi.Router) {
				q.Post("/", quotationHandler.Create)
				q.Get("/mine", quotationHandler.ListMine)
				q.Get("/{id}", quotationHandler.Get)
				q.Post("/{id}/send", quotationHandler.Send)
				q.Post("/{id}/approve", quotationHandler.Approve)
				q.Post("/{id}/reject", quotationHandler.Reject)
			})

			protected.Route("/wallet", func(wr chi.Router) {
				wr.Get("/balance", walletHandler.Balance)
				wr.Get("/transactions", walletHandler.Transactions)
				wr.Post("/topup", walletHandler.TopUp)
			})
		})
	})

	if err := dispatcher.Start(); err != nil {
		logger.Error("failed to start reminder dispatcher", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	dispatcher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
