package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oxide-lab/discover/internal/catalog"
	"github.com/oxide-lab/discover/internal/config"
	"github.com/oxide-lab/discover/internal/discovery"
	"github.com/oxide-lab/discover/internal/store"
)

// session is a hydrated discovery service plus the resources behind it.
type session struct {
	cfg *config.Config
	svc *discovery.Service
	hub *catalog.Hub
	kv  store.KV
}

// openSession loads the config, opens the configured store and hydrates a
// discovery service from it. offline sessions have no catalog client.
func openSession(ctx context.Context, offline bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	redisPassword, err := config.GetConfigValue(config.KeyRedisPassword)
	if err != nil {
		return nil, err
	}
	kv, err := store.Open(ctx, store.Options{
		Backend:       cfg.Store.Backend,
		Path:          path,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: redisPassword,
		RedisDB:       cfg.Store.RedisDB,
		KeyPrefix:     cfg.Store.KeyPrefix,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot open store: %w", err)
	}

	s := &session{cfg: cfg, kv: kv}
	var searcher catalog.Searcher
	if !offline {
		token, err := config.GetConfigValue(config.KeyHFToken)
		if err != nil {
			_ = s.close()
			return nil, err
		}
		s.hub = catalog.NewHub(nil, cfg.HubURL, token, logger)
		searcher = s.hub
	}

	s.svc = discovery.New(searcher, kv, discovery.Options{
		Limits:     cfg.CacheLimits(),
		PageSize:   cfg.PageSize,
		FuzzyLimit: cfg.Cache.FuzzyLimit,
		HistoryMax: cfg.History.Max,
	}, logger)
	s.svc.Hydrate(ctx)
	return s, nil
}

func (s *session) close() error {
	var errs []error
	if s.hub != nil {
		errs = append(errs, s.hub.Close())
	}
	if c, ok := s.kv.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
