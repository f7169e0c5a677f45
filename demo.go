package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jakebf/hubc/internal/api"
	"github.com/jakebf/hubc/internal/memapi"
)

// demoUser owns the seeded data of the in-process demo backend.
const demoUser = "demo"

// demoLatency makes the demo feel like a real network: long enough to see
// an optimistic update land before the server answers.
const demoLatency = 150 * time.Millisecond

// demoBaseURL never resolves; requests are served by the memapi transport.
const demoBaseURL = "http://demo.hub.local"

// newDemoBackend serves a seeded in-memory hub in-process. Snapshots are
// disabled so demo data never lands in the real cache.
func newDemoBackend(cfg config, log *zap.Logger, latency time.Duration) (*backend, error) {
	srv := memapi.New()
	if err := srv.Seed(demoUser, time.Now()); err != nil {
		return nil, err
	}
	srv.SetLatency(latency)
	client := &api.Client{
		BaseURL:  demoBaseURL,
		Identity: api.Identity{UserID: demoUser},
		HTTP:     &http.Client{Transport: srv.Transport()},
		Timeout:  cfg.timeout(),
		Logger:   log.Named("api"),
	}
	cfg.CacheDir = ""
	b := wireBackend(client, cfg, nil, log)
	b.demo = srv
	return b, nil
}
