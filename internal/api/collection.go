package api

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/jakebf/hubc/internal/record"
)

// Collection names as they appear in /api/<collection>.
const (
	Tasks     = "tasks"
	People    = "people"
	Knowledge = "knowledge"
)

// Collections lists every collection in hub display order.
var Collections = []string{Tasks, People, Knowledge}

// Collection is the CRUD surface of one /api/<name> endpoint.
type Collection[T record.Record] struct {
	client *Client
	Name   string
}

func NewCollection[T record.Record](c *Client, name string) *Collection[T] {
	return &Collection[T]{client: c, Name: name}
}

func (col *Collection[T]) path() string { return "/api/" + col.Name }

func (col *Collection[T]) itemPath(id int64) string {
	return fmt.Sprintf("/api/%s/%d", col.Name, id)
}

// List fetches every record in the collection.
func (col *Collection[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := col.client.Do(ctx, http.MethodGet, col.path(), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

type created struct {
	ID int64 `json:"id"`
}

// Create posts draft and returns the id the backend assigned.
func (col *Collection[T]) Create(ctx context.Context, draft any) (int64, error) {
	var res created
	if err := col.client.Do(ctx, http.MethodPost, col.path(), draft, &res); err != nil {
		return 0, err
	}
	return res.ID, nil
}

// Update sends a partial update for id.
func (col *Collection[T]) Update(ctx context.Context, id int64, patch any) error {
	return col.client.Do(ctx, http.MethodPatch, col.itemPath(id), patch, nil)
}

func (col *Collection[T]) Delete(ctx context.Context, id int64) error {
	return col.client.Do(ctx, http.MethodDelete, col.itemPath(id), nil, nil)
}

// Hub groups the three collections of one backend.
type Hub struct {
	Client    *Client
	Tasks     *Collection[record.Task]
	People    *Collection[record.Person]
	Knowledge *Collection[record.Knowledge]
}

func NewHub(c *Client) *Hub {
	return &Hub{
		Client:    c,
		Tasks:     NewCollection[record.Task](c, Tasks),
		People:    NewCollection[record.Person](c, People),
		Knowledge: NewCollection[record.Knowledge](c, Knowledge),
	}
}

// Everything is one consistent read of all collections.
type Everything struct {
	Tasks     []record.Task
	People    []record.Person
	Knowledge []record.Knowledge
}

// LoadAll fetches the three collections concurrently. The first failure
// cancels the others.
func (h *Hub) LoadAll(ctx context.Context) (Everything, error) {
	var all Everything
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all.Tasks, err = h.Tasks.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		all.People, err = h.People.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		all.Knowledge, err = h.Knowledge.List(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Everything{}, err
	}
	return all, nil
}

// AddPersonNote attaches a dated note to a person card.
func (h *Hub) AddPersonNote(ctx context.Context, personID int64, text string) (int64, error) {
	var res created
	path := fmt.Sprintf("/api/people/%d/notes", personID)
	if err := h.Client.Do(ctx, http.MethodPost, path, map[string]string{"text": text}, &res); err != nil {
		return 0, err
	}
	return res.ID, nil
}

func (h *Hub) DeletePersonNote(ctx context.Context, personID, noteID int64) error {
	path := fmt.Sprintf("/api/people/%d/notes/%d", personID, noteID)
	return h.Client.Do(ctx, http.MethodDelete, path, nil, nil)
}
