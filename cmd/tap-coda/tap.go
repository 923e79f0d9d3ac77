package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/coda-tap/pkg/cache"
	"github.com/Sternrassler/coda-tap/pkg/client"
	"github.com/Sternrassler/coda-tap/pkg/coda"
	"github.com/Sternrassler/coda-tap/pkg/config"
	"github.com/Sternrassler/coda-tap/pkg/engine"
	"github.com/Sternrassler/coda-tap/pkg/pagination"
	"github.com/Sternrassler/coda-tap/pkg/schema"
	"github.com/Sternrassler/coda-tap/pkg/sink"
)

// tap wires the API client, description cache and engine for one command.
type tap struct {
	orchestrator *engine.Orchestrator
	redis        *redis.Client
}

func newTap(ctx context.Context, cfg *config.Config, out sink.Sink) (*tap, error) {
	c, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, err
	}

	t := &tap{}
	var store schema.Store
	if cfg.RedisAddr != "" {
		t.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := t.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, API description will not be cached")
			_ = t.redis.Close()
			t.redis = nil
		} else {
			store = cache.NewManager(t.redis, cache.DefaultRetention)
		}
	}

	doc, err := schema.NewLoader(c, cfg.OpenAPIURL, store).Load(ctx)
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("load api description: %w", err)
	}

	graph, err := coda.Graph()
	if err != nil {
		t.Close()
		return nil, err
	}

	fetcher, err := pagination.NewFetcher(c, pagination.DefaultConfig())
	if err != nil {
		t.Close()
		return nil, err
	}

	t.orchestrator, err = engine.New(graph, schema.NewResolver(schema.NewCache(doc)), fetcher, out, engine.Config{
		Selected:      cfg.Selected,
		Parallel:      cfg.Parallel,
		StrictRecords: cfg.StrictRecords,
	})
	if err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// Close releases the Redis connection, if any.
func (t *tap) Close() {
	if t.redis != nil {
		_ = t.redis.Close()
	}
}
