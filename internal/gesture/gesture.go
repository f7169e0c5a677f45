// Package gesture recognises horizontal swipes on list rows.
//
// A Controller follows one pointer drag over one row: the row tracks the
// pointer 1:1 and, on release, either flies off screen and emits an Intent or
// springs back to rest. Controllers never perform the mutation themselves;
// the Intent goes to whatever callback the owner supplied.
package gesture

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/charmbracelet/harmonica"
)

type Phase int

const (
	Idle Phase = iota
	Tracking
	CommittingLeft
	CommittingRight
	SnappingBack
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	case CommittingLeft:
		return "committing-left"
	case CommittingRight:
		return "committing-right"
	case SnappingBack:
		return "snapping-back"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Kind is the mutation an Intent asks for.
type Kind string

const (
	Delete Kind = "delete"
	Toggle Kind = "toggle"
)

// Intent is emitted once per committed swipe. Seq is unique for the life of
// the process and lets consumers drop a replayed intent.
type Intent struct {
	Kind     Kind
	RecordID int64
	Seq      uint64
}

// Indicator is the action hint shown behind a dragged row.
type Indicator int

const (
	IndicatorNone Indicator = iota
	IndicatorDelete
	IndicatorToggle
)

const (
	DefaultCommitThreshold   = 80
	DefaultLockThreshold     = 20
	DefaultOffscreenDistance = 480
	DefaultFPS               = 60
)

type Options struct {
	// CommitThreshold is the release distance at or beyond which a swipe
	// commits.
	CommitThreshold float64
	// LockThreshold is the distance below which no indicator is shown.
	LockThreshold float64
	// DisableLeft and DisableRight turn a direction into snap-back only.
	DisableLeft  bool
	DisableRight bool
	// OffscreenDistance is where a committed row animates to.
	OffscreenDistance float64
	// FPS is the rate Step is expected to be called at.
	FPS int
}

func (o Options) withDefaults() Options {
	if o.CommitThreshold <= 0 {
		o.CommitThreshold = DefaultCommitThreshold
	}
	if o.LockThreshold <= 0 {
		o.LockThreshold = DefaultLockThreshold
	}
	if o.OffscreenDistance <= 0 {
		o.OffscreenDistance = DefaultOffscreenDistance
	}
	if o.OffscreenDistance < o.CommitThreshold {
		o.OffscreenDistance = o.CommitThreshold
	}
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	return o
}

var seq atomic.Uint64

// settleEpsilon is how close, in pixels and pixels per frame, the spring has
// to get before the row counts as at rest.
const settleEpsilon = 0.5

// Controller is the swipe state machine for a single row. It is not safe for
// concurrent use; the UI event loop owns it.
type Controller struct {
	id     int64
	opts   Options
	emit   func(Intent)
	spring harmonica.Spring

	phase    Phase
	startX   float64
	delta    float64
	offset   float64
	velocity float64
	target   float64
	departed bool
}

// New returns an idle controller for the row showing record id. emit may be
// nil.
func New(id int64, opts Options, emit func(Intent)) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		id:     id,
		opts:   opts,
		emit:   emit,
		spring: harmonica.NewSpring(harmonica.FPS(opts.FPS), 12.0, 1.0),
	}
}

func (c *Controller) RecordID() int64 { return c.id }
func (c *Controller) Phase() Phase    { return c.phase }

// Offset is the row's current horizontal displacement in pixels.
func (c *Controller) Offset() float64 { return c.offset }

// Departed reports whether the row committed and now sits off screen.
func (c *Controller) Departed() bool { return c.departed }

// Animating reports whether Step still has work to do.
func (c *Controller) Animating() bool {
	switch c.phase {
	case CommittingLeft, CommittingRight, SnappingBack:
		return true
	}
	return false
}

// Settled is the inverse of Animating.
func (c *Controller) Settled() bool { return !c.Animating() }

// Start begins tracking a press at x. It is ignored while a commit is in
// flight or after the row has departed, and reports whether tracking began.
// A snap-back still in progress is abandoned and the offset reset.
func (c *Controller) Start(x float64) bool {
	if c.departed || c.phase == CommittingLeft || c.phase == CommittingRight {
		return false
	}
	c.phase = Tracking
	c.startX = x
	c.delta = 0
	c.offset = 0
	c.velocity = 0
	return true
}

// Move follows the pointer to x. Moves outside tracking are dropped.
func (c *Controller) Move(x float64) {
	if c.phase != Tracking {
		return
	}
	c.delta = x - c.startX
	c.offset = c.delta
}

// End resolves the gesture against the commit threshold.
func (c *Controller) End() {
	if c.phase != Tracking {
		return
	}
	switch {
	case c.delta <= -c.opts.CommitThreshold && !c.opts.DisableLeft:
		c.phase = CommittingLeft
		c.target = -c.opts.OffscreenDistance
	case c.delta >= c.opts.CommitThreshold && !c.opts.DisableRight:
		c.phase = CommittingRight
		c.target = c.opts.OffscreenDistance
	default:
		c.phase = SnappingBack
		c.target = 0
	}
}

// Cancel is handled exactly like End.
func (c *Controller) Cancel() { c.End() }

// Step advances the settle animation by one frame and reports whether the
// controller is still animating. The intent of a committed swipe is emitted
// from the Step that brings the row to rest.
func (c *Controller) Step() bool {
	if !c.Animating() {
		return false
	}
	c.offset, c.velocity = c.spring.Update(c.offset, c.velocity, c.target)
	if math.Abs(c.offset-c.target) > settleEpsilon || math.Abs(c.velocity) > settleEpsilon {
		return true
	}
	c.offset, c.velocity = c.target, 0
	c.settle()
	return false
}

// Finish runs the animation to completion.
func (c *Controller) Finish() {
	if !c.Animating() {
		return
	}
	c.offset, c.velocity = c.target, 0
	c.settle()
}

func (c *Controller) settle() {
	var kind Kind
	switch c.phase {
	case CommittingLeft:
		kind = Delete
	case CommittingRight:
		kind = Toggle
	}
	c.phase = Idle
	c.delta = 0
	if kind == "" {
		return
	}
	c.departed = true
	if c.emit != nil {
		c.emit(Intent{Kind: kind, RecordID: c.id, Seq: seq.Add(1)})
	}
}

// Reset returns a departed row to rest. Owners call it once the list has
// been reloaded and the row is still present.
func (c *Controller) Reset() {
	c.phase = Idle
	c.delta, c.offset, c.velocity, c.target = 0, 0, 0, 0
	c.departed = false
}

// Indicator returns the hint to draw behind the row. At most one is shown.
func (c *Controller) Indicator() Indicator {
	switch c.phase {
	case CommittingLeft:
		return IndicatorDelete
	case CommittingRight:
		return IndicatorToggle
	case Tracking:
		if math.Abs(c.delta) < c.opts.LockThreshold {
			return IndicatorNone
		}
		if c.delta < 0 && !c.opts.DisableLeft {
			return IndicatorDelete
		}
		if c.delta > 0 && !c.opts.DisableRight {
			return IndicatorToggle
		}
	}
	return IndicatorNone
}
