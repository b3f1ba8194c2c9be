package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/nathoo/jianghu/generation"
)

func TestThreshold(t *testing.T) {
	tests := []struct {
		name                               string
		effectiveness, arts, qi, strength int
		want                               float64
	}{
		{"plain", 50, 0, 0, 10, 40},
		{"stats add", 30, 15, 5, 10, 40},
		{"clamped low", 0, 0, 0, 50, 1},
		{"clamped high", 90, 30, 20, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Threshold(tt.effectiveness, tt.arts, tt.qi, tt.strength); got != tt.want {
				t.Errorf("Threshold = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveExchange_Boundaries(t *testing.T) {
	tests := []struct {
		threshold, roll float64
		want            CombatResult
	}{
		{40, 0, Victory},
		{40, 39.99, Victory},
		{40, 40, Draw},
		{40, 80, Draw},
		{40, 80.01, Defeat},
		{40, 99.99, Defeat},
		{100, 50, Victory},
		{100, 99.99, Victory},
		{1, 0, Victory},
		{1, 1, Draw},
		{1, 99.5, Draw},
		{1, 99.51, Defeat},
	}
	for _, tt := range tests {
		if got := ResolveExchange(tt.threshold, tt.roll); got != tt.want {
			t.Errorf("ResolveExchange(%v, %v) = %s, want %s", tt.threshold, tt.roll, got, tt.want)
		}
	}
}

func TestResolveExchange_Partition(t *testing.T) {
	rank := map[CombatResult]int{Victory: 0, Draw: 1, Defeat: 2}
	for th := 1; th <= 100; th++ {
		threshold := float64(th)
		if got := ResolveExchange(threshold, 0); got != Victory {
			t.Fatalf("threshold %v: roll 0 = %s", threshold, got)
		}
		if got := ResolveExchange(threshold, 100); got == Victory {
			t.Fatalf("threshold %v: roll 100 = victory", threshold)
		}
		// Zones are contiguous: results never step back as the roll rises.
		prev := Victory
		for roll := 0.0; roll < 100; roll += 0.25 {
			got := ResolveExchange(threshold, roll)
			if rank[got] < rank[prev] {
				t.Fatalf("threshold %v: %s at roll %v after %s", threshold, got, roll, prev)
			}
			prev = got
		}
	}
}

func TestCombat_Start(t *testing.T) {
	e := newTestEngine().load("fight")

	c, ok := e.Combat()
	if !ok {
		t.Fatal("no active combat")
	}
	if c.Exchange != 0 || c.ShowChoices || c.Opponent.ID != "bandit" {
		t.Errorf("combat = %+v", c)
	}
	if len(c.Panels) != 2 || c.Panels[0].Image.URL != "img:blade drawn" {
		t.Errorf("panels = %+v", c.Panels)
	}
	calls := e.gen.imageCalls()
	if len(calls) != 1 || calls[0].Kind != generation.KindCombat {
		t.Errorf("image calls = %+v", calls)
	}
	if e.AvailableCombatChoices() != nil {
		t.Error("choices visible before reveal")
	}
	if e.sched.pending() != 1 || e.sched.delays[0] != 2*time.Second {
		t.Fatalf("reveal not scheduled: %v", e.sched.delays)
	}

	e.sched.run()
	if c, _ := e.Combat(); !c.ShowChoices {
		t.Error("choices hidden after reveal")
	}
	avail := e.AvailableCombatChoices()
	if len(avail) != 3 {
		t.Fatalf("choices = %d", len(avail))
	}
	if avail[2].Choice.ID != "palm" || avail[2].Available {
		t.Errorf("palm = %+v, want unavailable", avail[2])
	}
}

func TestCombat_IntermediateExchangeAlwaysAdvances(t *testing.T) {
	e := newTestEngine().load("fight")
	e.rolls.rolls = []float64{99.9}

	if err := e.MakeCombatChoice(ctx, "strike"); err != nil {
		t.Fatal(err)
	}
	c, ok := e.Combat()
	if !ok {
		t.Fatal("combat ended on an intermediate exchange")
	}
	if c.Exchange != 1 || c.ShowChoices || c.LastRoll != 99.9 {
		t.Errorf("combat = exchange %d shown %v roll %v", c.Exchange, c.ShowChoices, c.LastRoll)
	}
	if id := e.Snapshot().Scene.Scene.ID; id != "fight" {
		t.Errorf("scene = %q", id)
	}
}

func TestCombat_StaleRevealIgnored(t *testing.T) {
	e := newTestEngine().load("fight")
	if err := e.MakeCombatChoice(ctx, "strike"); err != nil {
		t.Fatal(err)
	}

	// The exchange 0 timer fires after the fight moved on.
	e.sched.step()
	if c, _ := e.Combat(); c.ShowChoices {
		t.Error("stale timer revealed exchange 1")
	}
	e.sched.step()
	if c, _ := e.Combat(); !c.ShowChoices {
		t.Error("exchange 1 timer did not reveal")
	}
}

func TestCombat_FinalOutcome(t *testing.T) {
	// No stats, strength 10, effectiveness 50: threshold 40.
	tests := []struct {
		name  string
		roll  float64
		scene string
	}{
		{"victory", 0, "end"},
		{"draw", 50, "med"},
		{"defeat", 90, "second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine().load("fight")
			e.rolls.rolls = []float64{50, tt.roll}

			if err := e.MakeCombatChoice(ctx, "strike"); err != nil {
				t.Fatal(err)
			}
			if err := e.MakeCombatChoice(ctx, "strike"); err != nil {
				t.Fatal(err)
			}

			snap := e.Snapshot()
			if snap.Scene.Scene.ID != tt.scene {
				t.Errorf("scene = %q, want %q", snap.Scene.Scene.ID, tt.scene)
			}
			if _, ok := e.Combat(); ok {
				t.Error("combat still active")
			}
			if tt.name == "victory" {
				if snap.Session.World.Flags["won"] != true || snap.Session.Player.Cultivation.ExternalArts != 5 {
					t.Errorf("victory rewards not applied: %+v", snap.Session)
				}
			}
		})
	}
}

func TestCombat_FleeSkipsRoll(t *testing.T) {
	e := newTestEngine().load("fight")

	if err := e.MakeCombatChoice(ctx, "run"); err != nil {
		t.Fatal(err)
	}
	if e.rolls.calls != 0 {
		t.Errorf("rolled %d times on flee", e.rolls.calls)
	}
	snap := e.Snapshot()
	if snap.Scene.Scene.ID != "start" || snap.Session.World.Flags["fled"] != true {
		t.Errorf("scene = %q flags = %v", snap.Scene.Scene.ID, snap.Session.World.Flags)
	}
}

func TestMakeCombatChoice_Rejected(t *testing.T) {
	e := newTestEngine().load("fight")
	tests := []struct {
		choice string
		want   error
	}{
		{"palm", ErrChoiceUnavailable},
		{"nope", ErrChoiceUnavailable},
	}
	for _, tt := range tests {
		if err := e.MakeCombatChoice(ctx, tt.choice); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.choice, err, tt.want)
		}
	}
	if c, _ := e.Combat(); c.Exchange != 0 {
		t.Errorf("exchange = %d after rejected moves", c.Exchange)
	}

	e = newTestEngine().load("start")
	if err := e.MakeCombatChoice(ctx, "strike"); !errors.Is(err, ErrNotInMode) {
		t.Errorf("outside combat: err = %v", err)
	}
}

func TestAdvanceCombatPanel(t *testing.T) {
	e := newTestEngine().load("fight")

	if err := e.AdvanceCombatPanel(); err != nil {
		t.Fatal(err)
	}
	c, _ := e.Combat()
	if c.PanelIndex != 1 || !c.ShowChoices {
		t.Errorf("panel %d shown %v, want last panel revealed", c.PanelIndex, c.ShowChoices)
	}

	// Staying on the last panel is harmless.
	if err := e.AdvanceCombatPanel(); err != nil {
		t.Fatal(err)
	}
	if c, _ := e.Combat(); c.PanelIndex != 1 {
		t.Errorf("panel = %d", c.PanelIndex)
	}

	e = newTestEngine().load("start")
	if err := e.AdvanceCombatPanel(); !errors.Is(err, ErrNotInMode) {
		t.Errorf("outside combat: err = %v", err)
	}
}
