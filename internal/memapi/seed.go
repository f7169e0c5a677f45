package memapi

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedData []byte

type seedFile struct {
	Tasks []struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description"`
		Priority    string `yaml:"priority"`
		DueInDays   *int   `yaml:"due_in_days"`
		Done        bool   `yaml:"done"`
	} `yaml:"tasks"`
	People []struct {
		FIO       string   `yaml:"fio"`
		BirthDate string   `yaml:"birth_date"`
		Relation  string   `yaml:"relation"`
		Workplace string   `yaml:"workplace"`
		Strengths string   `yaml:"strengths"`
		Benefits  string   `yaml:"benefits"`
		Groups    []string `yaml:"groups"`
		Notes     []string `yaml:"notes"`
	} `yaml:"people"`
	Knowledge []struct {
		Title   string   `yaml:"title"`
		Content string   `yaml:"content"`
		Tags    []string `yaml:"tags"`
	} `yaml:"knowledge"`
}

// Seed loads the bundled demo data for user. Deadlines are placed relative
// to now.
func (s *Server) Seed(user string, now time.Time) error {
	var f seedFile
	if err := yaml.Unmarshal(seedData, &f); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.data(user)
	stamp := now.UTC().Format(timestampLayout)

	// Rows are kept newest first; insert in reverse so the file order wins.
	for i := len(f.Tasks) - 1; i >= 0; i-- {
		t := f.Tasks[i]
		body := map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"priority":    t.Priority,
			"done":        t.Done,
		}
		if t.DueInDays != nil {
			body["deadline"] = now.AddDate(0, 0, *t.DueInDays).Format("2006-01-02")
		}
		d.rows["tasks"] = append([]row{s.newRow("tasks", body, stamp)}, d.rows["tasks"]...)
	}
	for i := len(f.People) - 1; i >= 0; i-- {
		p := f.People[i]
		body := map[string]any{
			"fio":        p.FIO,
			"birth_date": nilIfEmpty(p.BirthDate),
			"relation":   nilIfEmpty(p.Relation),
			"workplace":  nilIfEmpty(p.Workplace),
			"strengths":  nilIfEmpty(p.Strengths),
			"benefits":   nilIfEmpty(p.Benefits),
			"groups":     toAny(p.Groups),
		}
		rw := s.newRow("people", body, stamp)
		notes := make([]any, 0, len(p.Notes))
		for _, text := range p.Notes {
			s.nextID++
			notes = append(notes, map[string]any{"id": s.nextID, "text": text, "created_at": stamp})
		}
		rw["notes"] = notes
		d.rows["people"] = append([]row{rw}, d.rows["people"]...)
	}
	for i := len(f.Knowledge) - 1; i >= 0; i-- {
		k := f.Knowledge[i]
		body := map[string]any{"title": k.Title, "content": k.Content, "tags": toAny(k.Tags)}
		d.rows["knowledge"] = append([]row{s.newRow("knowledge", body, stamp)}, d.rows["knowledge"]...)
	}
	return nil
}

// newRow assigns the next id. Callers hold s.mu.
func (s *Server) newRow(coll string, body map[string]any, stamp string) row {
	s.nextID++
	rw := row{"id": s.nextID, "created_at": stamp}
	applyFields(coll, rw, body, true)
	return rw
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
