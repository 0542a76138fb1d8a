package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"confidential-market/internal/auth"
	"confidential-market/internal/blockchain"
	"confidential-market/internal/config"
	"confidential-market/internal/confidential"
	"confidential-market/internal/database"
	"confidential-market/internal/handlers"
	"confidential-market/internal/jobs"
	"confidential-market/internal/lock"
	"confidential-market/internal/logging"
	"confidential-market/internal/oracle"
	"confidential-market/internal/repository"
	"confidential-market/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server exited")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auth.InitJWT(cfg.App.JWTSecret)

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.AutoMigrate(db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	repo := repository.NewRepository(db)

	// Per-market locking: in-process always, Redis too when several instances share the database.
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Redis.Addr != "" {
		redisLocker, err := lock.NewRedisLocker(ctx, lock.RedisConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			TLSEnabled: cfg.Redis.TLSEnabled,
			TTL:        cfg.Redis.LockTTL.Duration,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisLocker.Close()
		locker = lock.Chain{locker, redisLocker}
		logger.Info("distributed market locks enabled", zap.String("redis", cfg.Redis.Addr))
	}

	// Ciphertexts and grants live in the database so handles survive a restart
	// and an external gateway can read them.
	backend := confidential.NewPlaintextBackend([]byte(cfg.Oracle.BackendSecret), repo)
	vault := blockchain.NewVault(logger.Named("vault"))

	markets := services.NewMarketService(repo, backend, vault, locker, services.Settings{
		MinDuration:    cfg.Settlement.MinDuration.Duration,
		MaxDuration:    cfg.Settlement.MaxDuration.Duration,
		RevealTimeout:  cfg.Settlement.RevealTimeout.Duration,
		EnforcePoolCap: cfg.Settlement.EnforcePoolCap,
		PrivacyFactor:  cfg.Settlement.PrivacyFactor,
	}, logger.Named("markets"))
	if !cfg.Settlement.EnforcePoolCap {
		logger.Warn("pool cap disabled, payouts may draw on other markets' escrow")
	}

	domain := oracle.DefaultDomain(cfg.Oracle.ChainID, cfg.Oracle.VerifyingContract)

	var (
		decryptionOracle oracle.Oracle
		verifier         *oracle.ThresholdVerifier
		relayer          *oracle.LocalRelayer
	)
	switch cfg.Oracle.Mode {
	case "local":
		signer, err := oracle.NewProofSigner(cfg.Oracle.SignerKeys, domain)
		if err != nil {
			return fmt.Errorf("failed to load oracle signer keys: %w", err)
		}
		verifier, err = oracle.NewThresholdVerifier(signer.Addresses(), cfg.Oracle.Threshold, domain)
		if err != nil {
			return err
		}
		relayer = oracle.NewLocalRelayer(backend, cfg.Oracle.Account, signer, oracle.RelayerOptions{
			Delay:    cfg.Oracle.RelayerDelay.Duration,
			Attempts: cfg.Oracle.RelayerAttempts,
			Backoff:  cfg.Oracle.RelayerBackoff.Duration,
			// The request row may not be committed yet, and a paused venue resumes later.
			Retryable: func(err error) bool {
				return errors.Is(err, services.ErrUnknownRequest) || errors.Is(err, services.ErrPaused)
			},
		}, logger.Named("relayer"))
		decryptionOracle = relayer
	case "http":
		addrs, err := oracle.ParseAddresses(cfg.Oracle.SignerAddresses)
		if err != nil {
			return fmt.Errorf("invalid oracle signer addresses: %w", err)
		}
		verifier, err = oracle.NewThresholdVerifier(addrs, cfg.Oracle.Threshold, domain)
		if err != nil {
			return err
		}
		decryptionOracle = oracle.NewGatewayClient(cfg.Oracle.GatewayURL, cfg.Oracle.CallbackURL)
	}

	reveal := services.NewRevealService(repo, markets, decryptionOracle, verifier, cfg.Oracle.Account, logger.Named("reveal"))
	settlement := services.NewSettlementService(markets, vault, logger.Named("settlement"))
	admins := services.NewAdminService(repo, markets, vault, logger.Named("admin"))
	logins := services.NewAuthService(repo, cfg.App.LoginChallengeTTL.Duration, logger.Named("auth"))
	if relayer != nil {
		relayer.SetSink(reveal)
	}

	// The configured fee seeds a fresh venue; admins change it at runtime.
	venue, err := repo.GetVenueSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load venue settings: %w", err)
	}
	if venue.CreationFee == 0 && cfg.Settlement.CreationFee > 0 {
		if err := repo.SetCreationFee(ctx, cfg.Settlement.CreationFee); err != nil {
			return fmt.Errorf("failed to apply creation fee: %w", err)
		}
	}
	if err := admins.BootstrapAdmins(ctx, cfg.Admin.Wallets); err != nil {
		return err
	}

	if !cfg.App.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:    handlers.NewAuthHandler(logins, admins, logger.Named("http")),
		Markets: handlers.NewMarketHandler(markets, reveal, settlement, logger.Named("http")),
		Oracle:  handlers.NewOracleHandler(reveal, logger.Named("http")),
		Admin:   handlers.NewAdminHandler(admins, logger.Named("http")),
		Inputs:  handlers.NewInputHandler(backend, logger.Named("http")),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			zap.String("port", cfg.Server.Port),
			zap.String("oracle_mode", cfg.Oracle.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return jobs.NewKeeper(markets, cfg.Settlement.KeeperInterval.Duration, logger).Run(gctx)
	})
	if relayer != nil {
		g.Go(func() error {
			if err := relayer.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
