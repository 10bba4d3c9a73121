package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/availability"
	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/appointment"
	"github.com/clinic/clinic/internal/domain/clinic"
	"github.com/clinic/clinic/internal/domain/dashboard"
	"github.com/clinic/clinic/internal/domain/doctor"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/domain/settings"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/cache"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/events"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/notification"
	"github.com/clinic/clinic/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Medical centre booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(availabilityCmd())

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

// migrationsFS uses dir when given and the embedded migrations otherwise.
func migrationsFS(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
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

			count, err := db.NewMigrator(pool, migrationsFS(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to a migrations directory (defaults to the embedded set)")
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

			statuses, err := db.NewMigrator(pool, migrationsFS(dir)).Status(ctx)
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
	statusCmd.Flags().String("dir", "", "Path to a migrations directory (defaults to the embedded set)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func availabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Print a doctor's slots for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorFlag, _ := cmd.Flags().GetString("doctor")
			date, _ := cmd.Flags().GetString("date")
			doctorID, err := uuid.Parse(doctorFlag)
			if err != nil {
				return fmt.Errorf("--doctor must be a doctor id: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if date == "" {
				loc, _ := cfg.Location()
				date = time.Now().In(loc).Format("2006-01-02")
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)
			settingsSvc, err := newSettingsService(cfg, pool, blobstore.NewInMemoryBlobStore(), logger)
			if err != nil {
				return err
			}
			doctorSvc := doctor.NewService(doctor.NewDoctorRepoPG(pool), doctor.NewScheduleRepoPG(pool), db.NewTransactor(pool), logger)
			apptSvc := appointment.NewService(appointment.NewRepoPG(pool), doctorSvc, settingsSvc, nil, logger)

			a, err := apptSvc.Availability(ctx, doctorID, date)
			if err != nil {
				return err
			}
			printAvailability(cmd.OutOrStdout(), a)
			return nil
		},
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Date as YYYY-MM-DD (defaults to today in the clinic timezone)")
	cmd.MarkFlagRequired("doctor")
	return cmd
}

func printAvailability(w io.Writer, a availability.Availability) {
	if !a.IsBookableDay {
		fmt.Fprintf(w, "%s: not a working day\n", a.Date)
		return
	}
	free := len(a.Free())
	fmt.Fprintf(w, "%s: %d of %d slots free\n", a.Date, free, len(a.Slots))
	if len(a.Slots) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Display", "Status"})
	table.SetAutoFormatHeaders(false)
	for _, s := range a.Slots {
		status := "free"
		if s.IsBooked {
			status = "booked"
		}
		table.Append([]string{s.Time, s.Display, status})
	}
	table.Render()
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func newSettingsService(cfg *config.Config, pool *pgxpool.Pool, blobs blobstore.BlobStore, logger zerolog.Logger) (*settings.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ResolverOptions()
	if err != nil {
		return nil, err
	}
	return settings.NewService(settings.NewRepoPG(pool), blobs, settings.Defaults{Options: opts, Location: loc}, logger), nil
}

// availabilityStore connects to Redis when configured and falls back to an
// in-process store.
func availabilityStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Store, func()) {
	if cfg.RedisURL != "" {
		store, err := cache.NewRedisStore(ctx, cfg.RedisURL, "clinic")
		if err == nil {
			logger.Info().Msg("availability cache: redis")
			return store, func() { store.Close() }
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory availability cache")
	}
	store := cache.NewMemoryStore()
	cleanupCtx, cancel := context.WithCancel(ctx)
	store.StartCleanup(cleanupCtx, time.Minute)
	return store, cancel
}

func eventPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, func()) {
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err == nil {
			logger.Info().Str("exchange", cfg.AMQPExchange).Msg("events: amqp")
			return p, func() { p.Close() }
		}
		logger.Warn().Err(err).Msg("amqp unavailable, logging events instead")
	}
	return events.LogPublisher{Logger: logger}, func() {}
}

func blobStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) blobstore.BlobStore {
	if cfg.MinioEndpoint != "" {
		store, err := blobstore.NewMinioBlobStore(ctx, blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err == nil {
			logger.Info().Str("bucket", cfg.MinioBucket).Msg("file storage: minio")
			return store
		}
		logger.Warn().Err(err).Msg("minio unavailable, keeping files in memory")
	}
	return blobstore.NewInMemoryBlobStore()
}

func notificationSenders(cfg *config.Config, logger zerolog.Logger) (notification.EmailSender, notification.SMSSender) {
	fallback := notification.LogSender{Logger: logger}
	var email notification.EmailSender = fallback
	var sms notification.SMSSender = fallback
	if cfg.SendGridAPIKey != "" && cfg.MailFromAddress != "" {
		email = notification.NewSendGridSender(cfg.SendGridAPIKey, cfg.MailFromAddress, cfg.MailFromName)
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		sms = notification.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	}
	return email, sms
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	logger := newLogger(os.Getenv("ENV"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Infrastructure
	store, closeStore := availabilityStore(ctx, cfg, logger)
	defer closeStore()
	publisher, closePublisher := eventPublisher(cfg, logger)
	defer closePublisher()
	blobs := blobStore(ctx, cfg, logger)
	emailSender, smsSender := notificationSenders(cfg, logger)
	notifications := notification.NewManager(emailSender, smsSender, nil)

	// Services
	settingsSvc, err := newSettingsService(cfg, pool, blobs, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid booking defaults")
	}
	doctorSvc := doctor.NewService(doctor.NewDoctorRepoPG(pool), doctor.NewScheduleRepoPG(pool), db.NewTransactor(pool), logger)
	apptRepo := appointment.NewRepoPG(pool)
	availabilityCache := appointment.NewAvailabilityCache(store, cfg.AvailabilityCacheTTL, logger)
	apptSvc := appointment.NewService(apptRepo, doctorSvc, settingsSvc, availabilityCache, logger)
	reminders := appointment.NewReminderWorker(apptRepo, settingsSvc, settingsSvc, notifications, cfg.ReminderCron, logger)

	settingsSvc.SetInvalidator(availabilityCache)
	doctorSvc.SetInvalidator(availabilityCache)
	doctorSvc.SetPublisher(publisher)
	apptSvc.SetPublisher(publisher)
	apptSvc.SetBookingNotifier(reminders)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")

	// Auth middleware
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	// Rate limiting middleware
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(30 * time.Second))

	// Domain routes
	patient.NewHandler(patient.NewService(patient.NewRepoPG(pool))).RegisterRoutes(apiV1)
	clinic.NewHandler(clinic.NewService(clinic.NewRepoPG(pool))).RegisterRoutes(apiV1)
	doctor.NewHandler(doctorSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	settings.NewHandler(settingsSvc).RegisterRoutes(apiV1)
	dashboard.NewHandler(dashboard.NewService(dashboard.NewRepoPG(pool), settingsSvc, logger)).RegisterRoutes(apiV1)
	blobstore.NewHandler(blobs).RegisterRoutes(apiV1)
	notification.NewHandler(notifications).RegisterRoutes(apiV1)

	// Reminder worker, stopped after the server has drained
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := reminders.Run(workerCtx); err != nil {
			logger.Error().Err(err).Msg("reminder worker failed")
		}
	}()

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

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	stopWorker()
	<-workerDone
	logger.Info().Msg("server stopped")
	return nil
}
