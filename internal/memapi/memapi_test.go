package memapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakebf/hubc/internal/api"
	"github.com/jakebf/hubc/internal/record"
)

var seedDay = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

func newHub(s *Server, user string) *api.Hub {
	return api.NewHub(&api.Client{
		BaseURL:  "http://hub.test",
		Identity: api.Identity{UserID: user},
		HTTP:     &http.Client{Transport: s.Transport()},
	})
}

func TestSeed(t *testing.T) {
	s := New()
	require.NoError(t, s.Seed("1", seedDay))

	all, err := newHub(s, "1").LoadAll(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, all.Tasks)
	require.NotEmpty(t, all.People)
	require.NotEmpty(t, all.Knowledge)

	first := all.Tasks[0]
	assert.Equal(t, "Pay the internet bill", first.Title)
	assert.Equal(t, "2024-01-10", first.Deadline)
	assert.Equal(t, record.PriorityHigh, first.Priority)

	var done int
	for _, task := range all.Tasks {
		if task.IsDone() {
			done++
		}
	}
	assert.Equal(t, 1, done)

	anna := all.People[0]
	assert.Equal(t, []string{"work"}, anna.Data.Groups)
	require.Len(t, anna.Notes, 1)

	// Notes with a colon in them must stay plain strings.
	sister := all.People[2]
	require.Len(t, sister.Notes, 2)
	assert.Equal(t, "Birthday gift idea: a ceramics class.", sister.Notes[0].Text)
}

func TestUsersAreIsolated(t *testing.T) {
	s := New()
	require.NoError(t, s.Seed("1", seedDay))

	tasks, err := newHub(s, "2").Tasks.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestMissingUserHeader(t *testing.T) {
	srv := httptest.NewServer(New())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/tasks")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestTaskLifecycle(t *testing.T) {
	s := New()
	hub := newHub(s, "7")
	ctx := context.Background()

	deadline := "2024-01-12"
	id, err := hub.Tasks.Create(ctx, record.TaskDraft{Title: "write tests", Deadline: &deadline, Priority: record.PriorityLow})
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, hub.Tasks.Update(ctx, id, map[string]any{"done": true, "deadline": nil}))
	tasks, err := hub.Tasks.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsDone())
	assert.Equal(t, deadline, tasks[0].Deadline, "null fields are ignored by a task patch")

	err = hub.Tasks.Update(ctx, id+100, map[string]bool{"done": true})
	assert.True(t, api.IsNotFound(err))
	assert.Equal(t, "HTTP 404: Not found", err.Error())

	require.NoError(t, hub.Tasks.Delete(ctx, id))
	require.NoError(t, hub.Tasks.Delete(ctx, id), "deleting twice is not an error")
	tasks, err = hub.Tasks.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	assert.Equal(t, 2, s.Count(http.MethodDelete, "/api/tasks/1"))
}

func TestNewestFirst(t *testing.T) {
	s := New()
	hub := newHub(s, "7")
	ctx := context.Background()
	for _, title := range []string{"a", "b", "c"} {
		_, err := hub.Knowledge.Create(ctx, record.KnowledgeDraft{Title: title})
		require.NoError(t, err)
	}
	notes, err := hub.Knowledge.List(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{notes[0].Title, notes[1].Title, notes[2].Title})
}

func TestPersonUpdateReplacesData(t *testing.T) {
	s := New()
	hub := newHub(s, "7")
	ctx := context.Background()

	id, err := hub.People.Create(ctx, record.PersonDraft{FIO: "Ivan", PersonData: record.PersonData{Relation: "friend", Groups: []string{"climbing"}}})
	require.NoError(t, err)
	_, err = hub.AddPersonNote(ctx, id, "likes tea")
	require.NoError(t, err)

	require.NoError(t, hub.People.Update(ctx, id, record.PersonDraft{FIO: "Ivan Petrov"}))
	people, err := hub.People.List(ctx)
	require.NoError(t, err)
	require.Len(t, people, 1)
	p := people[0]
	assert.Equal(t, "Ivan Petrov", p.FIO)
	assert.Empty(t, p.Data.Relation)
	assert.Empty(t, p.Data.Groups)
	require.Len(t, p.Notes, 1, "notes survive a card update")

	require.NoError(t, hub.DeletePersonNote(ctx, id, p.Notes[0].ID))
	people, err = hub.People.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, people[0].Notes)
}

func TestCreateRequiresTitle(t *testing.T) {
	hub := newHub(New(), "7")
	_, err := hub.Tasks.Create(context.Background(), map[string]string{"description": "no title"})
	var he *api.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusUnprocessableEntity, he.Status)
	assert.True(t, strings.Contains(he.Message, "Field required"))
}

func TestFailNext(t *testing.T) {
	s := New()
	require.NoError(t, s.Seed("1", seedDay))
	hub := newHub(s, "1")
	s.FailNext(http.MethodPatch, http.StatusInternalServerError, "database is locked")

	err := hub.Tasks.Update(context.Background(), 1, map[string]bool{"done": true})
	assert.EqualError(t, err, "HTTP 500: database is locked")
	assert.NoError(t, hub.Tasks.Update(context.Background(), 1, map[string]bool{"done": true}))
}

func TestLatencyRespectsContext(t *testing.T) {
	s := New()
	s.SetLatency(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := newHub(s, "1").Tasks.List(ctx)
	assert.ErrorIs(t, err, api.ErrTimeout)
	assert.Empty(t, s.Calls())
}
