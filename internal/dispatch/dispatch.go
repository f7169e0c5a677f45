// Package dispatch turns swipe intents and form submissions into backend
// mutations and keeps a record store in step with the backend afterwards.
//
// Every operation is safe to call from a goroutine other than the UI loop.
// Failures are returned in the Outcome and passed to the Notifier; nothing
// here panics or blocks the caller past its context.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jakebf/hubc/internal/gesture"
	"github.com/jakebf/hubc/internal/record"
)

// Remote is the backend collection a Dispatcher writes to.
// *api.Collection satisfies it.
type Remote[T record.Record] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, draft any) (int64, error)
	Update(ctx context.Context, id int64, patch any) error
	Delete(ctx context.Context, id int64) error
}

// Notifier receives every failure the dispatcher reports.
type Notifier interface {
	Notify(err error)
}

type NotifierFunc func(err error)

func (f NotifierFunc) Notify(err error) { f(err) }

// Outcome is the result of handling one intent.
type Outcome[T record.Record] struct {
	Intent gesture.Intent
	// Skipped is set when the intent was dropped without a network call:
	// the record is gone, cannot be toggled, or the intent was a replay.
	Skipped bool
	// Records is the store snapshot after the follow-up reload.
	Records []T
	Err     error
}

// rememberedSeqs bounds the replay filter.
const rememberedSeqs = 512

type Dispatcher[T record.Record] struct {
	store   *record.Store[T]
	remote  Remote[T]
	notify  Notifier
	log     *zap.Logger
	persist func([]T) error

	flight singleflight.Group

	mu      sync.Mutex
	handled map[uint64]bool
	order   []uint64
}

type Option[T record.Record] func(*Dispatcher[T])

func WithNotifier[T record.Record](n Notifier) Option[T] {
	return func(d *Dispatcher[T]) { d.notify = n }
}

func WithLogger[T record.Record](l *zap.Logger) Option[T] {
	return func(d *Dispatcher[T]) { d.log = l }
}

// WithPersist registers a hook that receives every snapshot a reload
// commits.
func WithPersist[T record.Record](fn func([]T) error) Option[T] {
	return func(d *Dispatcher[T]) { d.persist = fn }
}

func New[T record.Record](store *record.Store[T], remote Remote[T], opts ...Option[T]) *Dispatcher[T] {
	d := &Dispatcher[T]{
		store:   store,
		remote:  remote,
		log:     zap.NewNop(),
		handled: make(map[uint64]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Store returns the store the dispatcher keeps current.
func (d *Dispatcher[T]) Store() *record.Store[T] { return d.store }

// Handle performs the mutation in, then reloads. Intents with a Seq already
// seen are skipped; concurrent intents for the same record and kind share one
// network call.
func (d *Dispatcher[T]) Handle(ctx context.Context, in gesture.Intent) Outcome[T] {
	log := d.log.With(
		zap.String("kind", string(in.Kind)),
		zap.Int64("record_id", in.RecordID),
		zap.Uint64("seq", in.Seq),
	)
	if !d.remember(in.Seq) {
		log.Debug("replayed intent skipped")
		return Outcome[T]{Intent: in, Skipped: true}
	}

	key := string(in.Kind) + "/" + strconv.FormatInt(in.RecordID, 10)
	v, _, _ := d.flight.Do(key, func() (any, error) {
		switch in.Kind {
		case gesture.Toggle:
			return d.toggle(ctx, in, log), nil
		case gesture.Delete:
			return d.remove(ctx, in, log), nil
		}
		return Outcome[T]{Intent: in, Err: fmt.Errorf("unknown intent kind %q", in.Kind)}, nil
	})
	out := v.(Outcome[T])
	out.Intent = in
	if out.Err != nil {
		d.report(out.Err)
	}
	return out
}

// remember records seq and reports whether it was new. Zero means "no
// sequence" and is never deduplicated.
func (d *Dispatcher[T]) remember(seq uint64) bool {
	if seq == 0 {
		return true
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handled[seq] {
		return false
	}
	d.handled[seq] = true
	d.order = append(d.order, seq)
	if len(d.order) > rememberedSeqs {
		delete(d.handled, d.order[0])
		d.order = d.order[1:]
	}
	return true
}

func (d *Dispatcher[T]) toggle(ctx context.Context, in gesture.Intent, log *zap.Logger) Outcome[T] {
	rec, ok := d.store.Find(in.RecordID)
	if !ok {
		log.Debug("toggle on missing record skipped")
		return Outcome[T]{Skipped: true}
	}
	c, ok := any(rec).(record.Completer)
	if !ok {
		return Outcome[T]{Skipped: true}
	}
	done := c.IsDone()
	setter, canSet := any(rec).(interface{ WithDone(bool) T })
	if canSet {
		d.store.Rewrite(in.RecordID, func(T) T { return setter.WithDone(!done) })
	}

	if err := d.remote.Update(ctx, in.RecordID, map[string]bool{"done": !done}); err != nil {
		if canSet {
			d.store.Rewrite(in.RecordID, func(cur T) T {
				if s, ok := any(cur).(interface{ WithDone(bool) T }); ok {
					return s.WithDone(done)
				}
				return cur
			})
		}
		log.Warn("toggle failed", zap.Error(err))
		return Outcome[T]{Records: d.store.Snapshot(), Err: fmt.Errorf("toggle: %w", err)}
	}
	log.Info("toggled", zap.Bool("done", !done))
	return d.afterMutation(ctx)
}

func (d *Dispatcher[T]) remove(ctx context.Context, in gesture.Intent, log *zap.Logger) Outcome[T] {
	if _, ok := d.store.Find(in.RecordID); !ok {
		log.Debug("delete on missing record skipped")
		return Outcome[T]{Skipped: true}
	}
	if err := d.remote.Delete(ctx, in.RecordID); err != nil {
		log.Warn("delete failed", zap.Error(err))
		return Outcome[T]{Records: d.store.Snapshot(), Err: fmt.Errorf("delete: %w", err)}
	}
	log.Info("deleted")
	return d.afterMutation(ctx)
}

func (d *Dispatcher[T]) afterMutation(ctx context.Context) Outcome[T] {
	records, err := d.reload(ctx)
	return Outcome[T]{Records: records, Err: err}
}

// Reload fetches the collection and commits it through the store's
// generation guard. It returns the store snapshot afterwards, which is the
// newer data when this reload lost a race.
func (d *Dispatcher[T]) Reload(ctx context.Context) ([]T, error) {
	records, err := d.reload(ctx)
	if err != nil {
		d.report(err)
	}
	return records, err
}

func (d *Dispatcher[T]) reload(ctx context.Context) ([]T, error) {
	ticket := d.store.Begin()
	records, err := d.remote.List(ctx)
	if err != nil {
		d.log.Warn("reload failed", zap.Error(err))
		return d.store.Snapshot(), fmt.Errorf("reload: %w", err)
	}
	if !d.store.Commit(ticket, records) {
		d.log.Debug("stale reload dropped", zap.Uint64("ticket", uint64(ticket)))
		return d.store.Snapshot(), nil
	}
	snap := d.store.Snapshot()
	if d.persist != nil {
		if err := d.persist(snap); err != nil {
			d.log.Warn("persist snapshot failed", zap.Error(err))
		}
	}
	return snap, nil
}

// Create validates draft, posts it and reloads. Invalid drafts never reach
// the network.
func (d *Dispatcher[T]) Create(ctx context.Context, draft record.Draft) (int64, error) {
	if err := draft.Validate(); err != nil {
		return 0, err
	}
	id, err := d.remote.Create(ctx, draft)
	if err != nil {
		err = fmt.Errorf("create: %w", err)
		d.report(err)
		return 0, err
	}
	d.log.Info("created", zap.Int64("record_id", id))
	if _, err := d.Reload(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// Update validates draft, sends it for id and reloads.
func (d *Dispatcher[T]) Update(ctx context.Context, id int64, draft record.Draft) error {
	if err := draft.Validate(); err != nil {
		return err
	}
	if err := d.remote.Update(ctx, id, draft); err != nil {
		err = fmt.Errorf("update: %w", err)
		d.report(err)
		return err
	}
	d.log.Info("updated", zap.Int64("record_id", id))
	_, err := d.Reload(ctx)
	return err
}

func (d *Dispatcher[T]) report(err error) {
	if d.notify == nil || errors.Is(err, context.Canceled) {
		return
	}
	d.notify.Notify(err)
}
