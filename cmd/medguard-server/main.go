package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medguard/medguard/internal/config"
	"github.com/medguard/medguard/internal/domain/audit"
	"github.com/medguard/medguard/internal/domain/breakglass"
	"github.com/medguard/medguard/internal/domain/consent"
	"github.com/medguard/medguard/internal/domain/encounter"
	"github.com/medguard/medguard/internal/platform/auth"
	"github.com/medguard/medguard/internal/platform/authz"
	"github.com/medguard/medguard/internal/platform/db"
	"github.com/medguard/medguard/internal/platform/middleware"
)

// consentCheckerAdapter adapts the consent service to the
// authz.ConsentChecker interface, avoiding circular imports between the
// authz and consent packages.
type consentCheckerAdapter struct {
	svc *consent.Service
}

func (a *consentCheckerAdapter) IsActive(ctx context.Context, patientID uuid.UUID, category authz.DataCategory, grantee string) (bool, error) {
	return a.svc.IsActive(ctx, patientID, category, grantee)
}

// encounterCheckerAdapter adapts the encounter service to
// authz.EncounterChecker.
type encounterCheckerAdapter struct {
	svc *encounter.Service
}

func (a *encounterCheckerAdapter) IsActiveEncounter(ctx context.Context, userID, patientID uuid.UUID) (bool, error) {
	return a.svc.IsActiveEncounter(ctx, userID, patientID)
}

// breakGlassCheckerAdapter adapts the break-glass service to
// authz.BreakGlassChecker.
type breakGlassCheckerAdapter struct {
	svc *breakglass.Service
}

func (a *breakGlassCheckerAdapter) IsOpen(ctx context.Context, userID, patientID uuid.UUID) (bool, error) {
	return a.svc.IsOpen(ctx, userID, patientID)
}

// breakGlassAuditor adapts the audit service to breakglass.Auditor.
type breakGlassAuditor struct {
	svc *audit.Service
}

func (a *breakGlassAuditor) BreakGlassInvoked(ctx context.Context, ev *breakglass.Event) error {
	_, err := a.svc.AppendBreakGlass(ctx, audit.KindBreakGlassInvoked, ev.UserID, ev.PatientID, ev.ReasonCode)
	return err
}

func (a *breakGlassAuditor) BreakGlassJustified(ctx context.Context, ev *breakglass.Event) error {
	reason := ""
	if ev.Justification != nil {
		reason = *ev.Justification
	}
	_, err := a.svc.AppendBreakGlass(ctx, audit.KindBreakGlassJustified, ev.UserID, ev.PatientID, reason)
	return err
}

func (a *breakGlassAuditor) BreakGlassExpired(ctx context.Context, ev *breakglass.Event) error {
	_, err := a.svc.AppendBreakGlass(ctx, audit.KindBreakGlassExpired, ev.UserID, ev.PatientID, "auto-expiry without justification")
	return err
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "medguard-server",
		Short: "Healthcare access control decision service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the access control API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(time.Duration(cfg.RequestTimeoutSeconds) * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	switch cfg.ResolvedAuthMode() {
	case "development":
		e.Use(auth.DevAuthMiddleware())
	case "hmac":
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	default:
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// API group with rate limiting
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Repositories and services
	auditRepo := audit.NewRepo(pool)
	auditSvc := audit.NewService(auditRepo, logger)

	consentRepo := consent.NewRepo(pool)
	consentSvc := consent.NewService(consentRepo)

	encounterRepo := encounter.NewRepo(pool)
	encounterSvc := encounter.NewService(encounterRepo)

	breakGlassRepo := breakglass.NewRepo(pool)
	breakGlassSvc := breakglass.NewService(
		breakGlassRepo,
		&breakGlassAuditor{svc: auditSvc},
		logger,
		time.Duration(cfg.BreakGlassWindowHours)*time.Hour,
		cfg.BreakGlassMaxPerHour,
	)

	// Decision engine
	engine, err := authz.NewEngine(
		authz.DefaultMatrix(),
		&consentCheckerAdapter{svc: consentSvc},
		&encounterCheckerAdapter{svc: encounterSvc},
		&breakGlassCheckerAdapter{svc: breakGlassSvc},
		auditSvc,
		logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build decision engine")
	}

	// Routes
	authz.NewHandler(engine).RegisterRoutes(apiV1)
	consent.NewHandler(consentSvc).RegisterRoutes(apiV1)
	encounter.NewHandler(encounterSvc).RegisterRoutes(apiV1)
	breakglass.NewHandler(breakGlassSvc).RegisterRoutes(apiV1)
	audit.NewHandler(auditSvc).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/readyz", db.HealthHandler(pool))

	// Break-glass auto-expiry sweeper
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	go breakGlassSvc.RunSweeper(sweepCtx, time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
