package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dryengineer/internal/auth"
	"dryengineer/internal/config"
	"dryengineer/internal/document"
	"dryengineer/internal/domain"
	"dryengineer/internal/gateway"
	"dryengineer/internal/geo"
	apphttp "dryengineer/internal/http"
	"dryengineer/internal/repository/sqlite"
	"dryengineer/internal/service"
	"dryengineer/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	messageRepo := sqlite.NewMessageRepository(db)
	recordStore := sqlite.NewRecordStore(db, domain.Users, domain.Recipes)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := messageRepo.Init(ctx); err != nil {
		logger.Fatalf("init message repository: %v", err)
	}
	if err := recordStore.Init(ctx); err != nil {
		logger.Fatalf("init record store: %v", err)
	}

	assetStore, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	locator := buildLocator(cfg, logger)
	if closer, ok := locator.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	addresses, err := geo.NewAddressResolver(cfg.Proxies())
	if err != nil {
		logger.Fatalf("trusted proxies: %v", err)
	}

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.TokenTTL())
	if err != nil {
		logger.Fatalf("setup tokens: %v", err)
	}

	hash := service.BcryptHasher(cfg.Auth.BcryptCost)
	authService := service.NewAuthService(userRepo, hash)
	assetService := service.NewAssetService(userRepo, assetStore)

	hub := gateway.NewHub(logger)
	go hub.Run(ctx)

	events := gateway.New(ctx, hub, gateway.Services{
		Auth:      authService,
		Records:   service.NewSynchronizer(recordStore, hash, domain.Users, domain.Recipes),
		Assets:    assetService,
		Documents: service.NewDocumentService(authService, assetService, buildRenderer(cfg, logger)),
		Responder: service.NewResponder(messageRepo, service.DefaultRules),
		Tokens:    tokens,
		Locator:   locator,
		Addresses: addresses,
	}, gateway.Options{
		AllowedOrigins: cfg.Origins(),
		BotName:        cfg.Chat.BotName,
		Logger:         logger,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(cfg.Proxies()); err != nil {
		logger.Fatalf("trusted proxies: %v", err)
	}
	handler := apphttp.NewHandler(events, hub, assetStore, cfg.Origins())
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildRenderer(cfg config.Config, logger *logrus.Logger) *document.PDFRenderer {
	font := document.ResolveFont(cfg.Document.FontPath, document.SystemFonts)
	if font == "" {
		logger.Warn("no truetype font found, user sheets will print only latin text")
		return document.NewPDFRenderer("")
	}
	renderer, err := document.NewUnicodePDFRenderer("", font)
	if err != nil {
		logger.Warnf("user sheet font disabled: %v", err)
		return document.NewPDFRenderer("")
	}
	logger.Infof("user sheets use font %s", font)
	return renderer
}

func buildLocator(cfg config.Config, logger *logrus.Logger) geo.Locator {
	if cfg.Geo.DBPath == "" {
		logger.Info("no geoip database configured, countries will be reported as Unknown")
		return geo.NopLocator{}
	}
	locator, err := geo.OpenMaxMind(cfg.Geo.DBPath)
	if err != nil {
		logger.Warnf("geoip disabled: %v", err)
		return geo.NopLocator{}
	}
	return locator
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Assets.Driver != "s3" {
		local, err := storage.NewLocalService(cfg.Assets.Dir)
		if err != nil {
			return nil, err
		}
		logger.Infof("storing assets in %s", cfg.Assets.Dir)
		return local, nil
	}
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	remote, err := storage.NewS3Service(client, cfg.Storage.Bucket, cfg.Storage.KeyPrefix)
	if err != nil {
		return nil, err
	}
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return remote, nil
}
