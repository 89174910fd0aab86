package main

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"sorteio/internal/config"
	"sorteio/internal/handlers"
	"sorteio/internal/repository"
	"sorteio/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operator web interface",
		RunE:  runServe,
	}
}

// setup loads the configuration, starts the logger and, when a DSN is
// configured, connects to the registry database. Tables are migrated only
// for commands that write awards. The returned cleanup must be called on
// exit.
func setup(cmd *cobra.Command, migrate bool) (*config.Config, *gorm.DB, func(), error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}

	logOut := io.Discard
	var logFile *os.File
	if cfg.Log.File != "" {
		logFile, err = os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logOut = logFile
	}
	lg := logger.Init("sorteio", cfg.Log.Verbose, false, logOut)

	cleanup := func() {
		lg.Close()
		if logFile != nil {
			_ = logFile.Close()
		}
	}

	if cfg.Database.DSN == "" {
		logger.Info("No database configured; numbers come from CSV uploads")
		return cfg, nil, cleanup, nil
	}

	db, err := openDB(cfg.Database, migrate)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	closeAll := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		cleanup()
	}
	return cfg, db, closeAll, nil
}

func openDB(cfg config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), cfg.GORMConfig())
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if migrate {
		if err := repository.AutoMigrate(db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

// newService wires the campaign service to the registry when one is available.
func newService(db *gorm.DB) *services.CampaignService {
	if db == nil {
		return services.NewCampaignService(nil, nil)
	}
	return services.NewCampaignService(repository.NewNumberRepository(db), repository.NewAwardRepository(db))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, db, cleanup, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer cleanup()

	campaignService := newService(db)

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	httpHandler := handlers.NewHTTPHandler(campaignService, templates, cfg.Campaign.DefaultID)

	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	assetsSubFS, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		return fmt.Errorf("assets sub-filesystem: %w", err)
	}
	r.StaticFS("/assets", http.FS(assetsSubFS))

	httpHandler.RegisterPublicRoutes(r)

	campaignRoutes := r.Group("/")
	campaignRoutes.Use(httpHandler.CampaignMiddleware())
	httpHandler.RegisterCampaignRoutes(campaignRoutes)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go runJanitor(ctx, campaignService, cfg.Campaign)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Infof("Server starting on http://localhost%s", addr)
	return r.Run(addr)
}

// runJanitor drops idle, not yet adjudicated campaign sessions.
func runJanitor(ctx context.Context, svc *services.CampaignService, cfg config.CampaignConfig) {
	ticker := time.NewTicker(cfg.JanitorEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := svc.CleanUpInactiveSessions(cfg.SessionMaxIdle); n > 0 {
				logger.Infof("Performed cleanup of %d inactive sessions.", n)
			}
		}
	}
}
