package gesture

// Registry holds one Controller per visible row, keyed by record id, so a
// drag on one row never touches another row's state.
type Registry struct {
	opts  Options
	emit  func(Intent)
	items map[int64]*Controller
}

func NewRegistry(opts Options, emit func(Intent)) *Registry {
	return &Registry{opts: opts, emit: emit, items: make(map[int64]*Controller)}
}

// Get returns the controller for id, creating it on first use.
func (r *Registry) Get(id int64) *Controller {
	c, ok := r.items[id]
	if !ok {
		c = New(id, r.opts, r.emit)
		r.items[id] = c
	}
	return c
}

// Lookup returns the controller for id without creating one.
func (r *Registry) Lookup(id int64) (*Controller, bool) {
	c, ok := r.items[id]
	return c, ok
}

// Len reports the number of live controllers.
func (r *Registry) Len() int { return len(r.items) }

// Active returns the controller currently tracking a drag, if any.
func (r *Registry) Active() (*Controller, bool) {
	for _, c := range r.items {
		if c.Phase() == Tracking {
			return c, true
		}
	}
	return nil, false
}

// Prune drops controllers whose rows are no longer visible. Controllers still
// animating are kept so a departing row can finish its flight.
func (r *Registry) Prune(visible []int64) {
	keep := make(map[int64]bool, len(visible))
	for _, id := range visible {
		keep[id] = true
	}
	for id, c := range r.items {
		if !keep[id] && !c.Animating() {
			delete(r.items, id)
		}
	}
}

// Step advances every animating controller by one frame and reports whether
// any is still moving.
func (r *Registry) Step() bool {
	moving := false
	for _, c := range r.items {
		if c.Step() {
			moving = true
		}
	}
	return moving
}

// Animating reports whether any controller still needs frames.
func (r *Registry) Animating() bool {
	for _, c := range r.items {
		if c.Animating() {
			return true
		}
	}
	return false
}

// ResetDeparted brings back rows that committed but survived a reload, which
// happens when the mutation failed or the row still passes the filter.
func (r *Registry) ResetDeparted() {
	for _, c := range r.items {
		if c.Departed() {
			c.Reset()
		}
	}
}
