package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkrupp/itemcatalog/internal/infra/config"
	"github.com/mkrupp/itemcatalog/internal/infra/logging"
	"github.com/mkrupp/itemcatalog/internal/infra/metrics"
	"github.com/mkrupp/itemcatalog/internal/infra/transport/http"
	"github.com/mkrupp/itemcatalog/internal/repo/blob"
	"github.com/mkrupp/itemcatalog/internal/repo/category"
	"github.com/mkrupp/itemcatalog/internal/repo/item"
	"github.com/mkrupp/itemcatalog/internal/repo/session"
	"github.com/mkrupp/itemcatalog/internal/repo/store"
	"github.com/mkrupp/itemcatalog/internal/repo/user"
	"github.com/mkrupp/itemcatalog/internal/svc/authsvc"
	"github.com/mkrupp/itemcatalog/internal/svc/authsvc/idtoken"
	"github.com/mkrupp/itemcatalog/internal/svc/avatarsvc"
	"github.com/mkrupp/itemcatalog/internal/svc/catalogsvc"
	"github.com/mkrupp/itemcatalog/internal/svc/websvc"
)

const (
	appName = "catalog"
	svcName = "catalogsvc"
)

type Config struct {
	config.EnvConfig

	// Debug forces debug logging
	Debug bool `env:"DEBUG" default:"false"`

	Log     logging.LoggerConfig                `envPrefix:"LOG_"`
	Store   store.Config                        `envPrefix:"STORE_"`
	Blob    blob.FileSystemBlobRepositoryConfig `envPrefix:"BLOB_"`
	Session session.Config                      `envPrefix:"SESSION_"`
	Auth    authsvc.AuthConfig                  `envPrefix:"AUTH_"`
	Avatar  avatarsvc.AvatarConfig              `envPrefix:"AVATAR_"`
	Web     websvc.WebConfig                    `envPrefix:"HTTP_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadEnvFiles(".env"); err != nil {
		panic(err)
	}

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	if cfg.Debug {
		cfg.Log.Level = "debug"
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.catalogsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	sessions, err := session.NewRepository(ctx, cfg.Session, db)
	if err != nil {
		return fmt.Errorf("new session repository: %w", err)
	}
	defer sessions.Close()

	blobs, err := blob.NewFileSystemBlobRepository(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("new blob repository: %w", err)
	}

	avatars, err := avatarsvc.NewAvatarService(ctx, blobs, db, user.SQLiteUserRepositoryFactory, nil, cfg.Avatar)
	if err != nil {
		return fmt.Errorf("new avatar service: %w", err)
	}

	verifier := idtoken.NewVerifier(cfg.Auth.Google, idtoken.NewJWKSKeySource(cfg.Auth.Google, nil))
	accounts := authsvc.NewAuthService(db, user.SQLiteUserRepositoryFactory, verifier, avatars, cfg.Auth)

	sessionManager, err := authsvc.NewSessionManager(db, user.SQLiteUserRepositoryFactory, sessions, cfg.Auth)
	if err != nil {
		return fmt.Errorf("new session manager: %w", err)
	}

	catalog := catalogsvc.NewCatalogService(
		db,
		category.SQLiteCategoryRepositoryFactory,
		item.SQLiteItemRepositoryFactory,
		user.SQLiteUserRepositoryFactory,
	)

	cfg.Web.GoogleClientID = cfg.Auth.Google.ClientID

	httpTransport, err := websvc.NewHTTPTransport(catalog, accounts, avatars, sessionManager, metrics.New(), cfg.Web)
	if err != nil {
		return fmt.Errorf("new http transport: %w", err)
	}

	if err := http.ListenAndServe(ctx, httpTransport, cfg.Web.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
