package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-account-admin/internal/account"
	accountrepo "github.com/ovaphlow/pitchfork/service-account-admin/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/auth"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/config"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/credential"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/router"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/session"
	sessionrepo "github.com/ovaphlow/pitchfork/service-account-admin/internal/session/repo"
	"github.com/ovaphlow/pitchfork/service-account-admin/internal/setting"
	settingrepo "github.com/ovaphlow/pitchfork/service-account-admin/internal/setting/repo"
	"github.com/ovaphlow/pitchfork/service-account-admin/pkg/database"
)

// stores bundles the persistence chosen by STORE_DRIVER.
type stores struct {
	db       *sqlx.DB
	accounts account.Store
	settings setting.Store
	refresh  session.RefreshStore
}

func (s *stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *stores) ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func openStores(cfg *config.Config, logger *zap.SugaredLogger) (*stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warnw("using in-memory store; data is lost on exit")
		return &stores{
			accounts: accountrepo.NewMemoryRepo(),
			settings: settingrepo.NewMemoryRepo(),
			refresh:  sessionrepo.NewMemoryRepo(),
		}, nil
	}
	db, err := database.Connect(cfg.Database())
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return &stores{
		db:       db,
		accounts: accountrepo.NewAccountRepo(db),
		settings: settingrepo.NewRepo(db),
		refresh:  sessionrepo.NewRefreshRepo(db),
	}, nil
}

// newServices builds the account service with the settings service as its
// registration policy.
func newServices(cfg *config.Config, st *stores, logger *zap.SugaredLogger) (*account.Service, *setting.Service) {
	settings := setting.NewService(st.settings, setting.Defaults{
		AllowedDomains: cfg.AllowedEmailDomains,
		Balance:        cfg.Balance(),
	})
	accounts := account.NewService(st.accounts, settings, credential.BcryptHasher{Cost: cfg.BcryptCost}, logger)
	return accounts, settings
}

// buildHandler wires every component behind the HTTP router.
func buildHandler(cfg *config.Config, st *stores, logger *zap.SugaredLogger) (http.Handler, error) {
	key, err := session.LoadSigningKey(cfg.SessionPrivateKeyFile)
	if err != nil {
		return nil, err
	}
	if cfg.SessionPrivateKeyFile == "" {
		logger.Warnw("SESSION_PRIVATE_KEY_FILE not set; generated an ephemeral signing key")
	}
	sessions, err := session.NewService(key, cfg.Session(), st.refresh)
	if err != nil {
		return nil, err
	}
	if cfg.AdminAPIKey == "" {
		logger.Warnw("ADMIN_API_KEY not set; api key requests will fail with CONFIGURATION_ERROR")
	}

	accounts, settings := newServices(cfg, st, logger)

	return router.RegisterRoutes(router.Deps{
		Logger:   logger,
		Auth:     auth.NewSelector(cfg.AdminAPIKey, sessions, accounts, logger),
		Accounts: account.NewHandler(accounts, logger),
		Settings: setting.NewHandler(settings, logger),
		Sessions: session.NewHandler(sessions, accounts, logger),
		Ping:     st.ping,
	}), nil
}
