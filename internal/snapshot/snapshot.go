// Package snapshot keeps the last list each collection loaded, so a client
// that starts offline still has something to show.
package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/peterbourgon/diskv/v3"
)

// ErrNotCached is returned by Load when nothing was saved for the key.
var ErrNotCached = errors.New("no cached snapshot")

// Cache is a diskv store laid out as <base>/<user>/<collection>.
type Cache struct {
	d   *diskv.Diskv
	now func() time.Time
}

func Open(basePath string) *Cache {
	return &Cache{
		d: diskv.New(diskv.Options{
			BasePath:          basePath,
			AdvancedTransform: keyToPath,
			InverseTransform:  pathToKey,
			CacheSizeMax:      1024 * 1024,
		}),
		now: time.Now,
	}
}

type envelope[T any] struct {
	SavedAt time.Time `json:"saved_at"`
	Records []T       `json:"records"`
}

// Save replaces the snapshot for user's collection.
func Save[T any](c *Cache, user, collection string, records []T) error {
	if records == nil {
		records = []T{}
	}
	data, err := json.Marshal(envelope[T]{SavedAt: c.now().UTC(), Records: records})
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", collection, err)
	}
	if err := c.d.Write(key(user, collection), data); err != nil {
		return fmt.Errorf("write %s snapshot: %w", collection, err)
	}
	return nil
}

// Load returns the snapshot for user's collection and when it was saved.
func Load[T any](c *Cache, user, collection string) ([]T, time.Time, error) {
	data, err := c.d.Read(key(user, collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, time.Time{}, ErrNotCached
		}
		return nil, time.Time{}, fmt.Errorf("read %s snapshot: %w", collection, err)
	}
	var env envelope[T]
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode %s snapshot: %w", collection, err)
	}
	return env.Records, env.SavedAt, nil
}

// Erase drops every snapshot for user.
func (c *Cache) Erase(user string) error {
	prefix := hex.EncodeToString([]byte(user)) + "-"
	var keys []string
	for k := range c.d.KeysPrefix(prefix, nil) {
		keys = append(keys, k)
	}
	var errs []error
	for _, k := range keys {
		if err := c.d.Erase(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// User ids are hex encoded so any value is a safe directory name and never
// contains the key separator.
func key(user, collection string) string {
	return hex.EncodeToString([]byte(user)) + "-" + collection
}

func keyToPath(k string) *diskv.PathKey {
	user, coll, _ := strings.Cut(k, "-")
	return &diskv.PathKey{Path: []string{user}, FileName: coll + ".json"}
}

func pathToKey(pk *diskv.PathKey) string {
	return strings.Join(pk.Path, "-") + "-" + strings.TrimSuffix(pk.FileName, ".json")
}
