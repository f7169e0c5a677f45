package gesture

import "testing"

type recorder struct {
	intents []Intent
}

func (r *recorder) emit(i Intent) { r.intents = append(r.intents, i) }

// settle steps c until it rests, failing if it never does.
func settle(t *testing.T, c *Controller) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		if !c.Step() {
			return
		}
	}
	t.Fatalf("controller still animating after 1000 frames: phase=%v offset=%v", c.Phase(), c.Offset())
}

func swipe(c *Controller, from float64, moves ...float64) {
	c.Start(from)
	for _, x := range moves {
		c.Move(x)
	}
	c.End()
}

func TestThresholds(t *testing.T) {
	tests := []struct {
		name      string
		delta     float64
		wantPhase Phase
		want      Kind
	}{
		{"left short", -79, SnappingBack, ""},
		{"left exact", -80, CommittingLeft, Delete},
		{"left past", -81, CommittingLeft, Delete},
		{"right short", 79, SnappingBack, ""},
		{"right exact", 80, CommittingRight, Toggle},
		{"right past", 81, CommittingRight, Toggle},
		{"tap", 0, SnappingBack, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec recorder
			c := New(7, Options{}, rec.emit)
			swipe(c, 200, 200+tt.delta/2, 200+tt.delta)
			if c.Phase() != tt.wantPhase {
				t.Fatalf("phase after release = %v, want %v", c.Phase(), tt.wantPhase)
			}
			settle(t, c)
			if c.Phase() != Idle {
				t.Errorf("phase after settle = %v, want idle", c.Phase())
			}
			if tt.want == "" {
				if len(rec.intents) != 0 {
					t.Errorf("intents = %v, want none", rec.intents)
				}
				if c.Offset() != 0 {
					t.Errorf("offset = %v, want 0 after snap back", c.Offset())
				}
				return
			}
			if len(rec.intents) != 1 {
				t.Fatalf("intents = %v, want exactly one", rec.intents)
			}
			if got := rec.intents[0]; got.Kind != tt.want || got.RecordID != 7 {
				t.Errorf("intent = %+v, want %s for 7", got, tt.want)
			}
		})
	}
}

func TestExactlyOnceDespiteLateEvents(t *testing.T) {
	var rec recorder
	c := New(1, Options{}, rec.emit)
	swipe(c, 300, 250, 200)

	// Stray events after release must not restart or re-resolve the gesture.
	c.Move(100)
	c.End()
	c.Cancel()
	if c.Start(300) {
		t.Error("Start accepted during commit")
	}
	settle(t, c)
	c.Move(0)
	c.End()
	if c.Start(300) {
		t.Error("Start accepted on a departed row")
	}
	for i := 0; i < 10; i++ {
		c.Step()
	}
	c.Finish()

	if len(rec.intents) != 1 {
		t.Fatalf("intents = %v, want exactly one", rec.intents)
	}
	if rec.intents[0].Kind != Delete {
		t.Errorf("kind = %s, want delete", rec.intents[0].Kind)
	}
	if !c.Departed() || c.Offset() != -DefaultOffscreenDistance {
		t.Errorf("departed=%v offset=%v, want row parked off screen", c.Departed(), c.Offset())
	}
}

func TestCancelUsesThresholds(t *testing.T) {
	var rec recorder
	c := New(1, Options{}, rec.emit)
	c.Start(0)
	c.Move(120)
	c.Cancel()
	if c.Phase() != CommittingRight {
		t.Fatalf("phase = %v, want committing-right", c.Phase())
	}
	c.Finish()
	if len(rec.intents) != 1 || rec.intents[0].Kind != Toggle {
		t.Errorf("intents = %v, want one toggle", rec.intents)
	}

	c2 := New(2, Options{}, rec.emit)
	c2.Start(0)
	c2.Move(-30)
	c2.Cancel()
	if c2.Phase() != SnappingBack {
		t.Errorf("phase = %v, want snapping-back", c2.Phase())
	}
}

func TestDragFollowsPointer(t *testing.T) {
	c := New(1, Options{}, nil)
	c.Start(100)
	for _, x := range []float64{90, 60, 130, 101} {
		c.Move(x)
		if got := c.Offset(); got != x-100 {
			t.Errorf("Move(%v): offset = %v, want %v", x, got, x-100)
		}
	}
}

func TestIndicator(t *testing.T) {
	tests := []struct {
		delta float64
		opts  Options
		want  Indicator
	}{
		{0, Options{}, IndicatorNone},
		{-19, Options{}, IndicatorNone},
		{19, Options{}, IndicatorNone},
		{-20, Options{}, IndicatorDelete},
		{-60, Options{}, IndicatorDelete},
		{20, Options{}, IndicatorToggle},
		{95, Options{}, IndicatorToggle},
		{95, Options{DisableRight: true}, IndicatorNone},
		{-95, Options{DisableLeft: true}, IndicatorNone},
	}
	for _, tt := range tests {
		c := New(1, tt.opts, nil)
		c.Start(0)
		c.Move(tt.delta)
		if got := c.Indicator(); got != tt.want {
			t.Errorf("delta %v opts %+v: indicator = %v, want %v", tt.delta, tt.opts, got, tt.want)
		}
	}
}

func TestIndicatorClearedOnSnapBack(t *testing.T) {
	c := New(1, Options{}, nil)
	swipe(c, 0, -50)
	if got := c.Indicator(); got != IndicatorNone {
		t.Errorf("indicator while snapping back = %v, want none", got)
	}
}

func TestDisabledDirectionSnapsBack(t *testing.T) {
	var rec recorder
	c := New(1, Options{DisableRight: true}, rec.emit)
	swipe(c, 0, 200)
	if c.Phase() != SnappingBack {
		t.Fatalf("phase = %v, want snapping-back", c.Phase())
	}
	settle(t, c)
	if len(rec.intents) != 0 {
		t.Errorf("intents = %v, want none", rec.intents)
	}
}

func TestStartResetsSnapBackInFlight(t *testing.T) {
	c := New(1, Options{}, nil)
	swipe(c, 0, 60)
	c.Step()
	if c.Offset() == 0 {
		t.Fatal("expected a leftover offset mid snap-back")
	}
	if !c.Start(10) {
		t.Fatal("Start rejected during snap-back")
	}
	if c.Offset() != 0 || c.Phase() != Tracking {
		t.Errorf("offset=%v phase=%v, want 0 and tracking", c.Offset(), c.Phase())
	}
}

func TestResetAfterDeparture(t *testing.T) {
	c := New(1, Options{}, nil)
	swipe(c, 0, -100)
	c.Finish()
	c.Reset()
	if c.Departed() || c.Offset() != 0 {
		t.Errorf("departed=%v offset=%v after Reset", c.Departed(), c.Offset())
	}
	if !c.Start(0) {
		t.Error("Start rejected after Reset")
	}
}

func TestSeqIsUnique(t *testing.T) {
	var rec recorder
	for id := int64(1); id <= 3; id++ {
		c := New(id, Options{}, rec.emit)
		swipe(c, 0, -100)
		c.Finish()
	}
	seen := make(map[uint64]bool)
	for _, in := range rec.intents {
		if seen[in.Seq] {
			t.Errorf("duplicate seq %d", in.Seq)
		}
		seen[in.Seq] = true
	}
}

func TestPhaseString(t *testing.T) {
	if got := CommittingLeft.String(); got != "committing-left" {
		t.Errorf("String = %q", got)
	}
	if got := Phase(42).String(); got != "Phase(42)" {
		t.Errorf("String = %q", got)
	}
}
