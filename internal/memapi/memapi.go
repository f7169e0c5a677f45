// Package memapi is an in-memory stand-in for the hub backend. It speaks the
// same JSON contract (rows newest first, done as 0/1, {"id": n} on create,
// {"ok": true} on change, {"detail": ...} on error) and backs demo mode and
// tests.
package memapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Call is one request seen by the server.
type Call struct {
	Method string
	Path   string
}

type row map[string]any

// dataset is one user's data, each collection ordered newest first.
type dataset struct {
	rows map[string][]row
}

type failure struct {
	method string
	status int
	detail string
}

type Server struct {
	mu       sync.Mutex
	users    map[string]*dataset
	nextID   int64
	calls    []Call
	failures []failure
	latency  time.Duration
	now      func() time.Time
	mux      *http.ServeMux
}

func New() *Server {
	s := &Server{
		users: make(map[string]*dataset),
		now:   time.Now,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/{collection}", s.list)
	mux.HandleFunc("POST /api/{collection}", s.create)
	mux.HandleFunc("PATCH /api/{collection}/{id}", s.update)
	mux.HandleFunc("DELETE /api/{collection}/{id}", s.remove)
	mux.HandleFunc("POST /api/people/{id}/notes", s.addNote)
	mux.HandleFunc("DELETE /api/people/{id}/notes/{note}", s.removeNote)
	s.mux = mux
	return s
}

// SetLatency delays every response served through Transport.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// SetClock replaces the clock used for created_at stamps.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// FailNext makes the next request with method answer status with detail.
func (s *Server) FailNext(method string, status int, detail string) {
	s.mu.Lock()
	s.failures = append(s.failures, failure{method: method, status: status, detail: detail})
	s.mu.Unlock()
}

// Calls returns a copy of the request log.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Count returns how many logged requests match method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// ResetCalls clears the request log.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.URL.Path = normalizePath(r.URL.Path)
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
	var fail *failure
	for i, f := range s.failures {
		if f.method == r.Method {
			fail = &f
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if fail != nil {
		writeJSON(w, fail.status, map[string]string{"detail": fail.detail})
		return
	}
	if r.Header.Get("X-User-Id") == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{
				"type": "missing",
				"loc":  []string{"header", "x-user-id"},
				"msg":  "Field required",
			}},
		})
		return
	}
	s.mux.ServeHTTP(w, r)
}

// Transport serves requests in process, without a listener.
func (s *Server) Transport() http.RoundTripper {
	return roundTripper{s}
}

type roundTripper struct{ s *Server }

func (rt roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.s.mu.Lock()
	latency := rt.s.latency
	rt.s.mu.Unlock()
	if latency > 0 {
		t := time.NewTimer(latency)
		select {
		case <-t.C:
		case <-req.Context().Done():
			t.Stop()
			return nil, req.Context().Err()
		}
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	rec := httptest.NewRecorder()
	rt.s.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// ─── Handlers ────────────────────────────────────────────────────────────────

var collections = map[string]bool{"tasks": true, "people": true, "knowledge": true}

func (s *Server) data(user string) *dataset {
	d, ok := s.users[user]
	if !ok {
		d = &dataset{rows: make(map[string][]row)}
		s.users[user] = d
	}
	return d
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	coll := r.PathValue("collection")
	if !collections[coll] {
		notFound(w)
		return
	}
	s.mu.Lock()
	rows := s.data(r.Header.Get("X-User-Id")).rows[coll]
	out := make([]row, len(rows))
	for i, rw := range rows {
		out[i] = clone(rw)
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	coll := r.PathValue("collection")
	if !collections[coll] {
		notFound(w)
		return
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	if field := titleField(coll); body[field] == nil {
		missingField(w, field)
		return
	}

	s.mu.Lock()
	rw := s.newRow(coll, body, s.now().UTC().Format(timestampLayout))
	d := s.data(r.Header.Get("X-User-Id"))
	d.rows[coll] = append([]row{rw}, d.rows[coll]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"id": rw["id"]})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	coll := r.PathValue("collection")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if !collections[coll] || err != nil {
		notFound(w)
		return
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	// People and knowledge are replaced wholesale and need their title.
	if field := titleField(coll); coll != "tasks" && body[field] == nil {
		missingField(w, field)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rw := s.find(r.Header.Get("X-User-Id"), coll, id)
	if rw == nil {
		notFound(w)
		return
	}
	applyFields(coll, rw, body, coll != "tasks")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	coll := r.PathValue("collection")
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if !collections[coll] || err != nil {
		notFound(w)
		return
	}
	s.mu.Lock()
	d := s.data(r.Header.Get("X-User-Id"))
	rows := d.rows[coll]
	for i, rw := range rows {
		if rw["id"] == id {
			d.rows[coll] = append(rows[:i:i], rows[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	// Deleting a missing row is not an error, as with the real backend.
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		notFound(w)
		return
	}
	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	text, _ := body["text"].(string)
	if body["text"] == nil {
		missingField(w, "text")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	person := s.find(r.Header.Get("X-User-Id"), "people", id)
	if person == nil {
		notFound(w)
		return
	}
	s.nextID++
	note := map[string]any{
		"id":         s.nextID,
		"text":       text,
		"created_at": s.now().UTC().Format(timestampLayout),
	}
	notes, _ := person["notes"].([]any)
	person["notes"] = append([]any{note}, notes...)
	writeJSON(w, http.StatusOK, map[string]int64{"id": s.nextID})
}

func (s *Server) removeNote(w http.ResponseWriter, r *http.Request) {
	id, err1 := strconv.ParseInt(r.PathValue("id"), 10, 64)
	noteID, err2 := strconv.ParseInt(r.PathValue("note"), 10, 64)
	if err1 != nil || err2 != nil {
		notFound(w)
		return
	}
	s.mu.Lock()
	if person := s.find(r.Header.Get("X-User-Id"), "people", id); person != nil {
		notes, _ := person["notes"].([]any)
		kept := make([]any, 0, len(notes))
		for _, n := range notes {
			if m, ok := n.(map[string]any); ok && m["id"] == noteID {
				continue
			}
			kept = append(kept, n)
		}
		person["notes"] = kept
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// find returns the stored row, or nil. Callers hold s.mu.
func (s *Server) find(user, coll string, id int64) row {
	for _, rw := range s.data(user).rows[coll] {
		if rw["id"] == id {
			return rw
		}
	}
	return nil
}

// ─── Row shaping ─────────────────────────────────────────────────────────────

func titleField(coll string) string {
	if coll == "people" {
		return "fio"
	}
	return "title"
}

var personDataFields = []string{
	"birth_date", "relation", "workplace", "financial", "strengths",
	"weaknesses", "benefits", "problems", "groups", "connections",
}

// applyFields copies body into rw the way the backend stores each
// collection. full replaces every field; otherwise only non-null fields in
// body are written.
func applyFields(coll string, rw row, body map[string]any, full bool) {
	switch coll {
	case "tasks":
		defaults := map[string]any{"description": "", "deadline": nil, "priority": "medium", "done": false}
		for _, f := range []string{"title", "description", "deadline", "priority", "done"} {
			v, ok := body[f]
			if !ok || v == nil {
				if full {
					rw[f] = sqlValue(defaults[f])
				}
				continue
			}
			rw[f] = sqlValue(v)
		}
	case "people":
		rw["fio"] = body["fio"]
		data := make(map[string]any, len(personDataFields))
		for _, f := range personDataFields {
			data[f] = body[f]
		}
		if data["groups"] == nil {
			data["groups"] = []any{}
		}
		if data["connections"] == nil {
			data["connections"] = []any{}
		}
		rw["data"] = data
		if _, ok := rw["notes"]; !ok {
			rw["notes"] = []any{}
		}
	case "knowledge":
		rw["title"] = body["title"]
		rw["content"] = body["content"]
		if rw["content"] == nil {
			rw["content"] = ""
		}
		rw["tags"] = body["tags"]
		if rw["tags"] == nil {
			rw["tags"] = []any{}
		}
	}
}

// sqlValue stores booleans the way SQLite returns them.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func clone(rw row) row {
	data, _ := json.Marshal(rw)
	var out row
	_ = json.Unmarshal(data, &out)
	return out
}

func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil || body == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"type": "json_invalid", "loc": []string{"body"}, "msg": "JSON decode error"}},
		})
		return nil, false
	}
	return body, true
}

func missingField(w http.ResponseWriter, field string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"type": "missing", "loc": []string{"body", field}, "msg": "Field required"}},
	})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// normalizePath trims a trailing slash so /api/tasks/ and /api/tasks match.
func normalizePath(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}
