package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jakebf/hubc/internal/api"
	"github.com/jakebf/hubc/internal/dispatch"
	"github.com/jakebf/hubc/internal/memapi"
	"github.com/jakebf/hubc/internal/record"
	"github.com/jakebf/hubc/internal/snapshot"
)

// backend bundles everything that talks to the hub: the REST client, one
// dispatcher per collection and the offline snapshot cache.
type backend struct {
	hub   *api.Hub
	user  string
	cache *snapshot.Cache // nil disables snapshots
	log   *zap.Logger
	demo  *memapi.Server // non-nil in demo mode

	tasks     *dispatch.Dispatcher[record.Task]
	people    *dispatch.Dispatcher[record.Person]
	knowledge *dispatch.Dispatcher[record.Knowledge]
}

func newBackend(cfg config, log *zap.Logger) *backend {
	client := &api.Client{
		BaseURL:  cfg.APIURL,
		Identity: api.Identity{UserID: cfg.UserID, InitData: cfg.InitData},
		HTTP:     &http.Client{},
		Timeout:  cfg.timeout(),
		Logger:   log.Named("api"),
	}
	var cache *snapshot.Cache
	if dir := cfg.snapshotDir(); dir != "" {
		cache = snapshot.Open(dir)
	}
	return wireBackend(client, cfg, cache, log)
}

func wireBackend(client *api.Client, cfg config, cache *snapshot.Cache, log *zap.Logger) *backend {
	hub := api.NewHub(client)
	b := &backend{hub: hub, user: client.Identity.UserID, cache: cache, log: log}
	var storeOpts []record.StoreOption
	if cfg.LastWriteWins {
		storeOpts = append(storeOpts, record.WithLastWriteWins())
	}
	b.tasks = dispatch.New(record.NewStore[record.Task](storeOpts...), dispatch.Remote[record.Task](hub.Tasks),
		dispatch.WithLogger[record.Task](log.Named("dispatch").With(zap.String("collection", api.Tasks))),
		dispatch.WithPersist(persistTo[record.Task](b, api.Tasks)))
	b.people = dispatch.New(record.NewStore[record.Person](storeOpts...), dispatch.Remote[record.Person](hub.People),
		dispatch.WithLogger[record.Person](log.Named("dispatch").With(zap.String("collection", api.People))),
		dispatch.WithPersist(persistTo[record.Person](b, api.People)))
	b.knowledge = dispatch.New(record.NewStore[record.Knowledge](storeOpts...), dispatch.Remote[record.Knowledge](hub.Knowledge),
		dispatch.WithLogger[record.Knowledge](log.Named("dispatch").With(zap.String("collection", api.Knowledge))),
		dispatch.WithPersist(persistTo[record.Knowledge](b, api.Knowledge)))
	return b
}

// persistTo saves every committed reload of collection to the snapshot cache.
func persistTo[T record.Record](b *backend, collection string) func([]T) error {
	return func(records []T) error {
		if b.cache == nil {
			return nil
		}
		return snapshot.Save(b.cache, b.user, collection, records)
	}
}

// loadAll fetches every collection in one round and commits each result
// through its store's reload guard.
func (b *backend) loadAll(ctx context.Context) error {
	tt, pt, kt := b.tasks.Store().Begin(), b.people.Store().Begin(), b.knowledge.Store().Begin()
	all, err := b.hub.LoadAll(ctx)
	if err != nil {
		return err
	}
	commit(b, api.Tasks, b.tasks.Store(), tt, all.Tasks)
	commit(b, api.People, b.people.Store(), pt, all.People)
	commit(b, api.Knowledge, b.knowledge.Store(), kt, all.Knowledge)
	return nil
}

func commit[T record.Record](b *backend, collection string, store *record.Store[T], t record.Ticket, records []T) {
	if !store.Commit(t, records) {
		return
	}
	if err := persistTo[T](b, collection)(store.Snapshot()); err != nil {
		b.log.Warn("persist snapshot failed", zap.String("collection", collection), zap.Error(err))
	}
}

// fetch reloads one collection. When the hub is unreachable and nothing is
// loaded yet, the store is filled from the last snapshot and savedAt tells
// when it was taken; err still carries the connection failure.
func fetch[T record.Record](ctx context.Context, b *backend, d *dispatch.Dispatcher[T], collection string) (savedAt time.Time, err error) {
	_, err = d.Reload(ctx)
	if err == nil || !errors.Is(err, api.ErrNoConnection) || d.Store().Len() > 0 || b.cache == nil {
		return time.Time{}, err
	}
	cached, savedAt, cerr := snapshot.Load[T](b.cache, b.user, collection)
	if cerr != nil {
		b.log.Debug("no snapshot to fall back to", zap.String("collection", collection), zap.Error(cerr))
		return time.Time{}, err
	}
	d.Store().Replace(cached)
	return savedAt, err
}
