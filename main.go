package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"instadm/internal/api"
	"instadm/internal/auth"
	"instadm/internal/authform"
	"instadm/internal/authprovider"
	"instadm/internal/callback"
	"instadm/internal/config"
	"instadm/internal/gotrue"
	"instadm/internal/instagram"
	"instadm/internal/redis"
	"instadm/internal/service/identity"
	"instadm/internal/storage"
	"instadm/internal/viewstate"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}

	cfgPath := os.Getenv("INSTADM_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("INSTADM_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: users, identities, user_tokens, consumed_links
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	viewTTL := time.Duration(cfg.BasicConfig.ViewStateTTL) * time.Minute
	var views viewstate.Store
	if rdb != nil {
		views = viewstate.NewRedisStore(rdb, viewTTL)
	} else {
		memViews := viewstate.NewMemoryStore(viewTTL)
		memViews.StartSweeper(bgCtx, viewTTL)
		views = memViews
	}

	authService := auth.NewService(db, rdb, time.Duration(cfg.BasicConfig.SessionTTL)*time.Hour)
	publicURL := strings.TrimRight(cfg.BasicConfig.PublicURL, "/")

	var (
		provider authprovider.Provider
		accounts api.Accounts
	)
	switch cfg.Auth.Mode {
	case config.AuthModeHosted:
		provider = gotrue.NewClient(cfg.Auth.HostedURL, cfg.Auth.HostedAnonKey, publicURL+"/auth", cfg.HTTPTimeout())
	default:
		opts := identity.Options{
			PublicURL:    publicURL,
			LinkSecret:   cfg.Auth.LinkSecret,
			MagicLinkTTL: time.Duration(cfg.Auth.MagicLinkTTLMin) * time.Minute,
			Mailer:       identity.NewMailer(cfg.Mail),
		}
		if cfg.Auth.GoogleClientID != "" {
			opts.Google = &identity.GoogleOptions{
				ClientID:     cfg.Auth.GoogleClientID,
				ClientSecret: cfg.Auth.GoogleClientSecret,
				HTTPClient:   &http.Client{Timeout: cfg.HTTPTimeout()},
			}
		}
		identityService, err := identity.NewService(db, authService, opts)
		if err != nil {
			log.Fatalf("init identity service: %v", err)
		}
		identityService.StartCleaner(bgCtx, identity.DefaultCleanupInterval)
		provider = identityService
		accounts = identityService
	}

	redirectURI := cfg.Instagram.RedirectURI
	if redirectURI == "" {
		redirectURI = publicURL + "/instagram/callback"
	}
	backend := instagram.NewBackendClient(cfg.BasicConfig.APIBaseURL, cfg.Instagram.AppID, redirectURI, cfg.HTTPTimeout())

	handlers := api.NewHandler(api.Options{
		Auth:           authService,
		Forms:          authform.NewController(provider, views),
		Accounts:       accounts,
		Instagram:      instagram.NewGraphClient(cfg.Instagram, cfg.HTTPTimeout()),
		Callback:       callback.NewFlow(backend),
		ViewTTL:        viewTTL,
		AllowedOrigins: cfg.BasicConfig.AllowedOrigins,
	})

	router := gin.Default()
	handlers.RegisterRoutes(router)

	if err := router.Run(cfg.BasicConfig.ServerAddress); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
