package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/opticalpos/opticalpos/internal/config"
	"github.com/opticalpos/opticalpos/internal/domain/insurance"
	"github.com/opticalpos/opticalpos/internal/domain/opticaltest"
	"github.com/opticalpos/opticalpos/internal/domain/partner"
	"github.com/opticalpos/opticalpos/internal/domain/payment"
	"github.com/opticalpos/opticalpos/internal/domain/pos"
	"github.com/opticalpos/opticalpos/internal/platform/auth"
	"github.com/opticalpos/opticalpos/internal/platform/cache"
	"github.com/opticalpos/opticalpos/internal/platform/db"
	"github.com/opticalpos/opticalpos/internal/platform/dialog"
	"github.com/opticalpos/opticalpos/internal/platform/middleware"
	"github.com/opticalpos/opticalpos/internal/platform/rpc"
	"github.com/opticalpos/opticalpos/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "optical-pos",
		Short: "Optical POS gateway",
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
		Short: "Start the POS gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres backend",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	addMigrateFlags(upCmd)
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

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
	addMigrateFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	return cmd
}

func addMigrateFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", "", "Target schema (defaults to DATABASE_SCHEMA)")
	cmd.Flags().String("dir", "", "Migrations directory (defaults to the embedded migrations)")
}

func openMigrator(ctx context.Context, cmd *cobra.Command) (*db.Migrator, *pgxpool.Pool, error) {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	if schema == "" {
		schema = cfg.DatabaseSchema
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, nil, err
	}
	migrator, err := db.NewMigrator(pool, migrationFiles(dir), schema)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	fmt.Printf("Migrations target schema: %s\n", schema)
	return migrator, pool, nil
}

func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// backend is the collaborator the workflows talk to, in one of its two forms.
type backend struct {
	name      string
	insurance insurance.Repository
	tests     opticaltest.Repository
	health    db.Pinger
	close     func()
}

func openBackend(ctx context.Context, cfg *config.Config, c cache.Cache, logger zerolog.Logger) (*backend, error) {
	switch cfg.BackendMode {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
			Schema:   cfg.DatabaseSchema,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return &backend{
			name:      config.BackendPostgres,
			insurance: insurance.NewRepoPG(pool),
			tests:     opticaltest.NewRepoPG(pool),
			health:    pool,
			close:     pool.Close,
		}, nil
	default:
		client := rpc.New(rpc.Config{
			URL:      cfg.BackendURL,
			Database: cfg.BackendDatabase,
			Timeout:  cfg.BackendTimeout,
			Tokens:   serviceTokens(cfg.BackendTokenSecret),
		})
		return &backend{
			name:      config.BackendRPC,
			insurance: insurance.NewRepoRPC(client, c, cfg.CatalogCacheTTL, logger),
			tests:     opticaltest.NewRepoRPC(client, c, cfg.CatalogCacheTTL, logger),
			health:    client,
			close:     func() {},
		}, nil
	}
}

// serviceTokens returns nil when no secret is configured, so requests go
// out without a bearer token.
func serviceTokens(secret string) rpc.TokenSource {
	if secret == "" {
		return nil
	}
	return &auth.ServiceTokens{Key: []byte(secret), Subject: "optical-pos", Audience: "backend"}
}

func openCache(redisURL string, logger zerolog.Logger) cache.Cache {
	if redisURL == "" {
		return cache.Nop{}
	}
	c, err := cache.NewValkey(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("catalog cache unavailable, reading catalogs from the backend")
		return cache.Nop{}
	}
	return c
}

// originChecker accepts websocket upgrades from the configured CORS origins.
// A "*" entry accepts any origin.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err != nil || u.Host == "" {
			return false
		}
		return allowed[strings.TrimRight(origin, "/")]
	}
}

// uploadLimit is the body limit for routes carrying a base64 document.
func uploadLimit(maxDocumentBytes int64) string {
	if maxDocumentBytes <= 0 {
		return "8M"
	}
	return strconv.FormatInt(maxDocumentBytes/3*4+64<<10, 10)
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Backend
	ctx := context.Background()
	catalogCache := openCache(cfg.RedisURL, logger)
	defer catalogCache.Close()

	be, err := openBackend(ctx, cfg, catalogCache, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open backend")
	}
	defer be.close()
	logger.Info().Str("backend", be.name).Msg("backend ready")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit(middleware.BodyLimitConfig{
		Limit:        "1M",
		UploadLimit:  uploadLimit(cfg.MaxDocumentBytes),
		UploadRoutes: []string{"/api/v1/patients/:id/insurance-policies"},
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Workflows
	registry := insurance.NewRegistry(be.insurance, logger, insurance.Options{
		CompanyLimit:     cfg.InsuranceCompanyLimit,
		MaxDocumentBytes: cfg.MaxDocumentBytes,
	})
	tests := opticaltest.NewService(be.tests, registry, logger, opticaltest.Options{
		FrameLimit:  cfg.FrameCatalogLimit,
		RecentLimit: cfg.RecentTestsLimit,
		ReportURL:   cfg.ReportURLTemplate,
	})
	profile := partner.NewProfile(registry, logger, partner.Options{
		OpticalEnabled:   cfg.OpticalEnabled,
		MaxDocumentBytes: cfg.MaxDocumentBytes,
	})
	checkout := payment.NewCheckout(payment.NewWorkflow(registry, logger), nil)
	terminal := pos.NewTerminal(checkout, tests, profile, logger, pos.Options{OpticalEnabled: cfg.OpticalEnabled})

	// REST API
	apiV1 := e.Group("/api/v1")
	insurance.NewHandler(registry).RegisterRoutes(apiV1)
	partner.NewHandler(profile).RegisterRoutes(apiV1)
	if cfg.OpticalEnabled {
		opticaltest.NewHandler(tests).RegisterRoutes(apiV1)
	}

	// Terminal websocket
	dialog.NewHandler(terminal.Handle, originChecker(cfg.CORSOrigins), logger).RegisterRoutes(e.Group(""))

	// Health
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(be.name, be.health))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
