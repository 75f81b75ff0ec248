package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	aiadapter "github.com/calebmoore/codereviewer/internal/adapter/driven/ai"
	githubadapter "github.com/calebmoore/codereviewer/internal/adapter/driven/github"
	sqliteadapter "github.com/calebmoore/codereviewer/internal/adapter/driven/sqlite"
	httphandler "github.com/calebmoore/codereviewer/internal/adapter/driving/http"
	"github.com/calebmoore/codereviewer/internal/application"
	"github.com/calebmoore/codereviewer/internal/config"
	"github.com/calebmoore/codereviewer/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (a .env file is optional, env vars win).
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"groq_keys", len(cfg.GroqAPIKeys),
		"anthropic", cfg.AnthropicAPIKey != "",
	)

	if !cfg.HasAIProvider() {
		return errors.New("no AI provider configured: set CODEREVIEWER_GROQ_API_KEYS or CODEREVIEWER_ANTHROPIC_API_KEY")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on the writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire stores.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.EncryptionKey())
	reportStore := sqliteadapter.NewReportRepo(db)

	// 6. Resolve GitHub credentials: stored credentials take priority over
	// env vars. Neither being present is fine; the login endpoint installs
	// a client at runtime.
	ghToken := cfg.GitHubToken
	ghUsername := cfg.GitHubUsername
	if storedToken, err := credentialStore.Get(ctx, "github", "token"); err == nil && storedToken != "" {
		ghToken = storedToken
	}
	if storedUsername, err := credentialStore.Get(ctx, "github", "username"); err == nil && storedUsername != "" {
		ghUsername = storedUsername
	}

	var ghClient driven.GitHubClient
	if ghToken != "" {
		ghClient = githubadapter.NewClient(ghToken, ghUsername)
		slog.Info("github client created", "username", ghUsername)
	} else {
		slog.Info("no github credentials configured, waiting for login")
	}
	provider := application.NewGitHubClientProvider(ghClient, ghUsername)

	// 7. Create the AI analyzer.
	analyzer, err := aiadapter.NewClient(aiadapter.Config{
		GroqAPIKeys:     cfg.GroqAPIKeys,
		GroqBaseURL:     cfg.GroqBaseURL,
		GroqModel:       cfg.GroqModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
	}, slog.Default())
	if err != nil {
		return err
	}

	// 8. Application services.
	manager := application.NewManager(provider, analyzer, reportStore, cfg.FixDelay, slog.Default())
	activity := application.NewActivityService(provider, reportStore, slog.Default())

	// 9. HTTP handler and routes. The client factory lets the login
	// endpoint build a fresh client for a new token.
	factory := func(token, username string) driven.GitHubClient {
		return githubadapter.NewClient(token, username)
	}
	apiHandler := httphandler.NewHandler(provider, manager, activity, analyzer, credentialStore, reportStore, factory, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second, // inference calls are slow
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("codereviewer started", "listen_addr", cfg.ListenAddr)

	// 10. Wait for shutdown signal, then drain.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
