package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"

	"github.com/veriford/trustcore/adapters/audit"
	"github.com/veriford/trustcore/adapters/events"
	"github.com/veriford/trustcore/adapters/idp"
	"github.com/veriford/trustcore/adapters/risk"
	"github.com/veriford/trustcore/adapters/signer"
	"github.com/veriford/trustcore/adapters/store"
	"github.com/veriford/trustcore/config"
	"github.com/veriford/trustcore/internal/metrics"
	"github.com/veriford/trustcore/service"
	transport "github.com/veriford/trustcore/transport/http"
)

func main() {
	configPath := flag.String("config", "trustcore.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	redisClient := redis.NewClient(opts)

	wmLogger := watermill.NewStdLogger(false, false)
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		log.Fatalf("Failed to create Redis publisher: %v", err)
	}

	auditStore, err := audit.OpenSQLiteStore(cfg.Audit.DSN)
	if err != nil {
		log.Fatalf("Failed to open audit store: %v", err)
	}
	defer auditStore.Close()

	counters := metrics.New()

	identityProvider := idp.NewOAuthProvider(cfg.IdP)
	assessor := risk.NewHTTPAssessor(cfg.Risk.URL, cfg.Risk.APIKey, cfg.Risk.Timeout.Std())
	tokenStore := store.NewRedisStore(redisClient)
	eventPub := events.NewWatermillPublisher(publisher)
	cookieSigner := signer.NewJWTSigner(cfg.Cookie.SigningKey, cfg.Cookie.SealKey)

	engine := service.NewRiskEngine(assessor, cfg.Risk, cfg.AccountHashSecret, logger)
	lifecycle := service.NewLifecycleManager(identityProvider, tokenStore, cfg.Tokens, counters, logger)
	orchestrator := service.NewOrchestrator(engine, identityProvider, lifecycle, auditStore, eventPub, cookieSigner, counters, logger)

	handlers := transport.NewAuthHandlers(orchestrator, lifecycle, cookieSigner, auditStore, cfg)
	router := transport.SetupRouter(handlers, cookieSigner, lifecycle, cfg.Cookie.Name)

	logger.Info("starting login trust core", "listen", cfg.Listen, "environment", cfg.Environment)

	if err := router.Run(cfg.Listen); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
