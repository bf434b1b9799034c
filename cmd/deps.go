package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/twmarket-cli/internal/fetcher"
	"github.com/sells-group/twmarket-cli/internal/market"
	"github.com/sells-group/twmarket-cli/internal/store"
)

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "twmarket.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initTransport builds the HTTP transport from config.
func initTransport() (*fetcher.HTTPFetcher, error) {
	proxies, err := fetcher.NewSelector(cfg.Fetch.Proxies)
	if err != nil {
		return nil, err
	}
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		Proxies:    proxies,
	}), nil
}

// initClient builds the market client with the enabled categories.
func initClient(investors, credit bool) (*market.Client, error) {
	transport, err := initTransport()
	if err != nil {
		return nil, err
	}
	return market.NewClient(transport, market.Options{
		InstitutionalInvestors: investors,
		CreditTransactions:     credit,
		Delay:                  time.Duration(cfg.Fetch.DelayMillis) * time.Millisecond,
	}), nil
}
