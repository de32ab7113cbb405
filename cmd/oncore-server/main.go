package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oncore/oncore/internal/config"
	"github.com/oncore/oncore/internal/domain/analytics"
	"github.com/oncore/oncore/internal/domain/assessments"
	"github.com/oncore/oncore/internal/domain/cases"
	"github.com/oncore/oncore/internal/domain/cohorts"
	"github.com/oncore/oncore/internal/domain/dashboard"
	"github.com/oncore/oncore/internal/domain/datasets"
	"github.com/oncore/oncore/internal/domain/genomics"
	"github.com/oncore/oncore/internal/domain/identity"
	"github.com/oncore/oncore/internal/domain/interop"
	"github.com/oncore/oncore/internal/domain/neoplasms"
	"github.com/oncore/oncore/internal/domain/projects"
	"github.com/oncore/oncore/internal/domain/therapies"
	"github.com/oncore/oncore/internal/platform/anonymize"
	"github.com/oncore/oncore/internal/platform/auth"
	"github.com/oncore/oncore/internal/platform/db"
	"github.com/oncore/oncore/internal/platform/events"
	"github.com/oncore/oncore/internal/platform/middleware"
	"github.com/oncore/oncore/internal/platform/terminology"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "oncore-server",
		Short: "Oncology research platform API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
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

// userCmd bootstraps the first account. Every API mutation requires an
// authenticated principal, so the initial system administrator has to come
// from outside the HTTP surface.
func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			level, _ := cmd.Flags().GetInt("access-level")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")
			email, _ := cmd.Flags().GetString("email")

			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}

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

			logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
			evtSvc := events.NewService(events.NewRepoPG(pool), logger)
			sessions := auth.NewSessionIssuer(cfg.SessionSecret, time.Duration(cfg.SessionTTLHours)*time.Hour)
			userSvc := identity.NewService(identity.NewUserRepoPG(pool), sessions, evtSvc)

			u := &identity.User{
				Username:     username,
				FirstName:    firstName,
				LastName:     lastName,
				Email:        email,
				Organization: cfg.Organization,
				AccessLevel:  auth.AccessLevel(level),
			}
			if err := userSvc.CreateUser(ctx, u, password); err != nil {
				return err
			}
			fmt.Printf("Created user %s (%s) with access level %d.\n", u.Username, u.ID, u.AccessLevel)
			return nil
		},
	}
	createCmd.Flags().String("username", "", "Login name (required)")
	createCmd.Flags().String("password", "", "Initial password (required)")
	createCmd.Flags().Int("access-level", int(auth.LevelSystemAdmin), "Access level 0-6")
	createCmd.Flags().String("first-name", "", "First name")
	createCmd.Flags().String("last-name", "", "Last name")
	createCmd.Flags().String("email", "", "Email address")
	cmd.AddCommand(createCmd)

	return cmd
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
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
	e.Validator = middleware.NewValidator()

	sessions := auth.NewSessionIssuer(cfg.SessionSecret, time.Duration(cfg.SessionTTLHours)*time.Hour)

	// Global middleware
	if cfg.TLSEnabled {
		e.Pre(echomw.HTTPSRedirect())
	}
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID", auth.SessionTokenHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(auth.SessionMiddleware(sessions))
	e.Use(middleware.Audit(logger))

	e.GET("/health", db.HealthHandler(pool))

	// Platform services
	txRun := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}

	evtSvc := events.NewService(events.NewRepoPG(pool), logger)
	evtHandler := events.NewHandler(evtSvc)

	termSvc, err := terminology.NewService(terminology.NewRepoPG(pool))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load terminology")
	}

	anon := anonymize.New(cfg.AnonymizerSecret)

	// Domain services
	caseSvc := cases.NewService(cases.NewPatientCaseRepoPG(pool), evtSvc, anon)

	neoEntities := neoplasms.NewNeoplasticEntityRepoPG(pool)
	neoplasmSvc := neoplasms.NewService(
		neoEntities,
		neoplasms.NewStagingRepoPG(pool),
		neoplasms.NewTumorMarkerRepoPG(pool),
		neoplasms.NewRiskAssessmentRepoPG(pool),
		neoplasms.NewTumorBoardRepoPG(pool),
		evtSvc,
		termSvc,
	)
	neoplasmSvc.SetAnonymizer(anon)

	genomicSvc := genomics.NewService(
		genomics.NewGenomicVariantRepoPG(pool),
		genomics.NewGenomicSignatureRepoPG(pool),
		evtSvc,
	)
	genomicSvc.SetAnonymizer(anon)

	assessmentSvc := assessments.NewService(
		assessments.NewAdverseEventRepoPG(pool),
		assessments.NewTreatmentResponseRepoPG(pool),
		assessments.NewPerformanceStatusRepoPG(pool),
		assessments.NewComorbiditiesRepoPG(pool),
		assessments.NewVitalsRepoPG(pool),
		assessments.NewLifestyleRepoPG(pool),
		assessments.NewFamilyHistoryRepoPG(pool),
		evtSvc,
	)
	assessmentSvc.SetAnonymizer(anon)

	therapySvc := therapies.NewService(
		therapies.NewSystemicTherapyRepoPG(pool),
		therapies.NewRadiotherapyRepoPG(pool),
		therapies.NewSurgeryRepoPG(pool),
		therapies.NewTherapyLineRepoPG(pool),
		assessmentSvc,
		neoEntities,
		evtSvc,
		txRun,
	)
	therapySvc.SetAnonymizer(anon)

	userSvc := identity.NewService(identity.NewUserRepoPG(pool), sessions, evtSvc)
	if cfg.OIDCIssuer != "" {
		verifier, err := auth.NewProviderVerifier(cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure OIDC provider")
		}
		userSvc.SetProviderVerifier(verifier)
	}

	projectSvc := projects.NewService(
		projects.NewProjectRepoPG(pool),
		projects.NewMembershipRepoPG(pool),
		projects.NewGrantRepoPG(pool),
		evtSvc,
	)

	ruleCompiler := cohorts.NewCompiler(termSvc)
	caseSvc.SetFilterCompiler(ruleCompiler)

	cohortSvc := cohorts.NewService(
		cohorts.NewCohortRepoPG(pool),
		ruleCompiler,
		caseSvc,
		evtSvc,
		txRun,
	)

	interopSvc := interop.NewService(caseSvc, neoplasmSvc, genomicSvc, therapySvc, assessmentSvc, userSvc, evtSvc, txRun)

	datasetSvc := datasets.NewService(datasets.NewDatasetRepoPG(pool), cohortSvc, interopSvc, evtSvc)

	analyticsSvc := analytics.NewService(analytics.NewRepoPG(pool), cohortSvc)

	dashboardSvc := dashboard.NewService(dashboard.NewRepoPG(pool), termSvc)

	// Event reversion
	evtSvc.RegisterReverter("PatientCase", events.ReverterFunc(caseSvc.Revert))
	neoplasmSvc.RegisterReverters(evtSvc)
	genomicSvc.RegisterReverters(evtSvc)
	assessmentSvc.RegisterReverters(evtSvc)
	therapySvc.RegisterReverters(evtSvc)
	projectSvc.RegisterReverters(evtSvc)
	cohortSvc.RegisterReverters(evtSvc)
	datasetSvc.RegisterReverters(evtSvc)
	userSvc.RegisterReverters(evtSvc)

	// Routes
	api := e.Group("/api/v1")

	identity.NewHandler(userSvc, evtHandler).RegisterRoutes(api)
	cases.NewHandler(caseSvc, evtHandler).RegisterRoutes(api)
	neoplasms.NewHandler(neoplasmSvc, evtHandler).RegisterRoutes(api)
	genomics.NewHandler(genomicSvc, evtHandler).RegisterRoutes(api)
	therapies.NewHandler(therapySvc, evtHandler).RegisterRoutes(api)
	assessments.NewHandler(assessmentSvc, evtHandler).RegisterRoutes(api)
	projects.NewHandler(projectSvc, evtHandler).RegisterRoutes(api)
	cohorts.NewHandler(cohortSvc, evtHandler, projectSvc).RegisterRoutes(api)
	datasets.NewHandler(datasetSvc, evtHandler, projectSvc).RegisterRoutes(api)
	interop.NewHandler(interopSvc).RegisterRoutes(api)
	analytics.NewHandler(analyticsSvc).RegisterRoutes(api)
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
