package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nathoo/jianghu/engine/events"
	"github.com/nathoo/jianghu/engine/rules"
	"github.com/nathoo/jianghu/engine/state"
	"github.com/nathoo/jianghu/types"
)

// DestinationAvailability is a destination with its gate result.
type DestinationAvailability struct {
	Destination types.Destination
	Available   bool
	Reason      string
}

// AvailableDestinations lists the current navigation scene's destinations.
func (e *Engine) AvailableDestinations() []DestinationAvailability {
	e.mu.RLock()
	defer e.mu.RUnlock()
	nav := e.navigation()
	if nav == nil {
		return nil
	}
	out := make([]DestinationAvailability, len(nav.Destinations))
	for i, d := range nav.Destinations {
		ok, reason := rules.Check(d.Requirement, e.session)
		out[i] = DestinationAvailability{Destination: d, Available: ok, Reason: reason}
	}
	return out
}

// Travel moves to a destination of the current navigation scene: the clock
// advances by the trip's duration, the location changes, and the
// destination's scene loads.
func (e *Engine) Travel(ctx context.Context, destinationID string) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.release()

	e.mu.Lock()
	nav := e.navigation()
	if nav == nil {
		e.mu.Unlock()
		return ErrNotInMode
	}
	var (
		dest  types.Destination
		found bool
	)
	for _, d := range nav.Destinations {
		if d.ID == destinationID {
			dest, found = d, true
			break
		}
	}
	if !found {
		e.mu.Unlock()
		return fmt.Errorf("%w: unknown destination %s", ErrChoiceUnavailable, destinationID)
	}
	if ok, reason := rules.Check(dest.Requirement, e.session); !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChoiceUnavailable, reason)
	}
	if err := e.requireScene(dest.Consequence.NextScene); err != nil {
		e.mu.Unlock()
		return err
	}

	w := &e.session.World
	w.CurrentTime = state.AdvanceTime(w.CurrentTime, dest.Consequence.TimeAdvance)
	w.CurrentLocation = types.Location{
		ID:          dest.ID,
		Name:        dest.Name,
		Description: dest.Description,
	}
	e.emit(events.Traveled, map[string]any{"destination": dest.ID, "periods": dest.Consequence.TimeAdvance})
	e.mu.Unlock()

	e.log.Info("traveled",
		zap.String("destination", dest.ID),
		zap.Int("periods", dest.Consequence.TimeAdvance))
	return e.loadScene(ctx, dest.Consequence.NextScene)
}

// navigation returns the current navigation content. Callers hold mu.
func (e *Engine) navigation() *types.NavigationContent {
	if e.scene == nil || e.scene.Scene.Type != types.SceneNavigation {
		return nil
	}
	return e.scene.Scene.Navigation
}
