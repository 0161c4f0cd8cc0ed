// docsum - multi-tenant document summarizer API
package main

import (
	"context"
	"os"

	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/config"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/logging"
	"github.com/BharathiThanikonda/Multi-tenent-document-summarizer/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	// Bootstrap logger until config says otherwise
	logger := logging.New("info", "text")

	logger.Info("starting docsum",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New(cfg.LogLevel, cfg.LogFormat)

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"postgres", cfg.DatabaseURL != "",
		"stripe", cfg.StripeSecretKey != "",
		"upload_dir", cfg.UploadDir,
	)

	srv, err := server.New(cfg, server.WithLogger(logger), server.WithVersion(Version))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
