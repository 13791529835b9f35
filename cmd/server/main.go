package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"url-shortener/internal/api"
	"url-shortener/internal/auth"
	"url-shortener/internal/config"
	"url-shortener/internal/db"
	"url-shortener/internal/logger"
	"url-shortener/internal/mailer"
	"url-shortener/internal/otp"
	"url-shortener/internal/renderer"
	"url-shortener/internal/shortener"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		boot := logger.New("info", true)
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.LogLevel, !cfg.IsProduction())
	log.Info().Str("env", cfg.Env).Msg("configuration loaded")
	if cfg.GeneratedSecrets {
		log.Warn().Msg("token secrets not set, using random ones; sessions will not survive a restart")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("database", redactDBURL(cfg.DatabaseURL)).Msg("connecting to database")
	store, err := db.Open(cfg.DatabaseURL, log, cfg.DBDebug)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return err
	}
	log.Info().Msg("database connected and schema migrated")

	otpStore, closeOTP, err := newOTPStore(ctx, cfg, store, log)
	if err != nil {
		return err
	}
	defer closeOTP()

	var mail mailer.Mailer
	if cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}, log)
	} else {
		log.Warn().Msg("SMTP_HOST not set, reset codes are only logged")
		mail = mailer.NewLogMailer(log)
	}

	tokens := auth.NewTokenManager(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	authService := auth.NewService(store, otpStore, otp.NewGenerator(cfg.OTPLength, cfg.OTPTTL), mail, tokens, cfg.BcryptCost, log)

	allocCfg := shortener.AllocatorConfig{
		Quota:             cfg.LinkQuota,
		CodeLength:        cfg.CodeLength,
		MaxCodeLength:     cfg.MaxCodeLength,
		AttemptsPerLength: cfg.AttemptsPerLength,
	}
	allocator := shortener.NewAllocator(store, allocCfg, log)
	resolver := shortener.NewResolver(store, cfg.MaxCodeLength)

	serviceOpts := []shortener.ServiceOption{shortener.WithAllowedDomains(cfg.AllowedDomainList())}
	var queue *renderer.Queue
	if cfg.PrerenderEnabled {
		rod := renderer.NewRodRenderer(cfg.RodBinPath, cfg.RenderTimeout(), log)
		queue = renderer.NewQueue(cfg.RenderWorkerCount, cfg.RenderQueueSize, cfg.RenderTimeout(), rod.Render, store, log)
		queue.Start()
		serviceOpts = append(serviceOpts, shortener.WithPreviewQueue(queue))
	}
	links := shortener.NewLinkService(store, allocator, cfg.LinkQuota, log, serviceOpts...)

	router := api.SetupRouter(api.Deps{
		Links:        links,
		Resolver:     resolver,
		Auth:         authService,
		Queue:        queue,
		DB:           store,
		CookieSecure: cfg.CookieSecure,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ServerPort).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if queue != nil {
		if err := queue.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("render queue shutdown")
		}
	}
	log.Info().Msg("server stopped")
	return nil
}

// newOTPStore keeps reset codes in Redis when REDIS_URL is set and in the
// users table otherwise.
func newOTPStore(ctx context.Context, cfg *config.Config, store *db.Store, log zerolog.Logger) (otp.Store, func(), error) {
	if cfg.RedisURL == "" {
		return otp.NewDBStore(store), func() {}, nil
	}

	client, err := otp.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("redis", redactDBURL(cfg.RedisURL)).Msg("storing reset codes in redis")
	return otp.NewRedisStore(client), func() { client.Close() }, nil
}

// redactDBURL hides the password and any auth token in a connection URL
// so it can be logged. Plain file paths are returned unchanged.
func redactDBURL(dbURL string) string {
	if !strings.Contains(dbURL, "://") {
		return dbURL
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		return "********"
	}

	q := u.Query()
	for _, key := range []string{"authToken", "password"} {
		if q.Has(key) {
			q.Set(key, "********")
		}
	}
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "********")
	}
	return u.String()
}
