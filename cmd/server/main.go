package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"swap-backend/internal/backends"
	"swap-backend/internal/cache"
	"swap-backend/internal/clients"
	"swap-backend/internal/config"
	"swap-backend/internal/db"
	"swap-backend/internal/events"
	"swap-backend/internal/handlers"
	"swap-backend/internal/repository"
	"swap-backend/internal/router"
	"swap-backend/internal/services"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}

	database, err := db.Init(&cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}

	var store cache.Store
	redisStore, err := cache.NewRedisStore(&cfg.Redis)
	if err != nil {
		logrus.WithError(err).Warn("Redis unavailable, falling back to in-process store")
		store = cache.NewMemoryStore()
	} else {
		store = redisStore
		defer redisStore.Close()
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			logrus.WithError(err).Warn("NATS unavailable, execution events disabled")
		} else {
			publisher = natsPublisher
			defer natsPublisher.Close()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var chainClients []clients.ChainClient
	uniswapContracts := make(map[uint64]backends.UniswapContracts)
	var chainIDs []uint64
	for name, network := range cfg.Blockchain.Networks {
		if !network.Enabled {
			continue
		}
		client, err := clients.DialChainClient(ctx, &network)
		if err != nil {
			logrus.WithFields(logrus.Fields{"network": name}).WithError(err).Fatal("Failed to connect chain")
		}
		chainClients = append(chainClients, client)
		chainIDs = append(chainIDs, network.ChainID)
		if network.UniswapRouter != "" && network.UniswapQuoter != "" {
			uniswapContracts[network.ChainID] = backends.UniswapContracts{
				Router:  network.UniswapRouter,
				Quoter:  network.UniswapQuoter,
				Permit2: network.Permit2,
			}
		}
	}
	pool := clients.NewChainPool(chainClients...)

	quoteTTL := time.Duration(cfg.Swap.QuoteTTLSeconds) * time.Second
	registry := backends.NewRegistry(
		backends.NewZeroExAdapter(
			clients.NewZeroExClient(cfg.Backends.ZeroExBaseURL, cfg.Backends.ZeroExAPIKey),
			pool, chainIDs, quoteTTL,
		),
		backends.NewUniswapAdapter(pool, uniswapContracts, quoteTTL),
		backends.NewLiFiAdapter(
			clients.NewLiFiClient(cfg.Backends.LiFiBaseURL),
			pool, chainIDs, quoteTTL,
		),
	)

	repo := repository.NewSwapExecutionRepository(database)
	payloadCache := cache.NewPayloadCache(store, cfg.Swap.PayloadTTL())
	rateLimiter := cache.NewRateLimiter(store, cfg.Swap.RateLimitPerHour, time.Hour)
	spamGuard := cache.NewSpamGuard(store, cfg.Swap.SpamCooldown())

	guard := services.NewGuardService(cfg, rateLimiter, spamGuard)
	resolver := services.NewQuoteResolver(registry)
	builder := services.NewTransactionBuilder(registry)
	approvals := services.NewApprovalService(pool, registry)
	multisig := services.NewMultisigService(pool, cfg)
	execution := services.NewExecutionService(cfg, pool, registry, repo, payloadCache, publisher)
	swapService := services.NewSwapService(guard, resolver, builder, approvals, multisig, execution, registry, repo, payloadCache)

	engine := router.SetupRouter(handlers.NewSwapHandler(swapService))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logrus.WithField("addr", addr).Info("Server starting")
	if err := engine.Run(addr); err != nil {
		logrus.WithError(err).Fatal("Server exited")
	}
}
