package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/fsnotify/fsnotify"

	"github.com/jakebf/hubc/internal/gesture"
)

// renderers hands out glamour renderers per style and wrap width. Rendering
// runs inside tea.Cmd goroutines, so each width gets a pool rather than a
// single shared renderer.
type renderers struct {
	mu    sync.Mutex
	pools map[rendererKey]*sync.Pool
}

type rendererKey struct {
	style string
	width int
}

var previewRenderers = &renderers{pools: make(map[rendererKey]*sync.Pool)}

func (rs *renderers) pool(k rendererKey) *sync.Pool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	p, ok := rs.pools[k]
	if !ok {
		p = &sync.Pool{}
		rs.pools[k] = p
	}
	return p
}

// render turns markdown into ANSI text wrapped to width. Any glamour failure
// falls back to the raw markdown, which is still readable.
func (rs *renderers) render(markdown, style string, width int) string {
	k := rendererKey{style: style, width: max(width-4, 20)}
	p := rs.pool(k)
	r, _ := p.Get().(*glamour.TermRenderer)
	if r == nil {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle(k.style),
			glamour.WithWordWrap(k.width),
		)
		if err != nil {
			return markdown
		}
	}
	defer p.Put(r)
	out, err := r.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}

// ─── Commands ────────────────────────────────────────────────────────────────

func renderMarkdown(key, markdown, style string, width int) tea.Cmd {
	return func() tea.Msg {
		return previewMsg{key: key, content: previewRenderers.render(markdown, style, width)}
	}
}

// loadAll fetches every collection at once for hub mode.
func loadAll(b *backend) tea.Cmd {
	return func() tea.Msg {
		return hubLoadedMsg{err: b.loadAll(context.Background())}
	}
}

func addNote(b *backend, personID int64, text string) tea.Cmd {
	return func() tea.Msg {
		_, err := b.hub.AddPersonNote(context.Background(), personID, text)
		if err != nil {
			err = fmt.Errorf("add note: %w", err)
		}
		return noteAddedMsg{personID: personID, err: err}
	}
}

// frameTick schedules the next swipe animation frame.
func frameTick() tea.Cmd {
	return tea.Tick(time.Second/gesture.DefaultFPS, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

// configDebounce coalesces the burst of events an editor produces on save.
const configDebounce = 100 * time.Millisecond

// watchConfig blocks until the config file changes. The parent directory is
// watched because editors usually replace the file instead of writing it.
func watchConfig(watcher *fsnotify.Watcher, path string) tea.Cmd {
	name := filepath.Base(path)
	return func() tea.Msg {
		var settle <-chan time.Time
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				settle = time.After(configDebounce)
			case <-settle:
				return configChangedMsg{}
			case _, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}
