package markers

import (
	"github.com/tricolour/indiamap/internal/dispatcher"
)

// Interaction commands handled by the registry.
const (
	CommandClick   = "marker:click"
	CommandHover   = "marker:hover"
	CommandVisited = "marker:visited"
)

// Navigation is the result of a click: a full-page navigation to URL.
type Navigation struct {
	URL string `json:"url"`
}

// RegisterHandlers binds marker clicks and hovers on d. Clicks resolve to a
// Navigation and queue a visit record.
func (r *Registry) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(CommandClick, func(e dispatcher.Event) (any, error) {
		h, err := r.Lookup(e.Target)
		if err != nil {
			return nil, err
		}
		if _, err := d.Dispatch(dispatcher.Event{Command: CommandVisited, Target: e.Target, Timestamp: e.Timestamp}); err != nil {
			r.logger.Warn("visit not recorded", "id", h.ID(), "error", err)
		}
		return Navigation{URL: h.desc.TargetURL}, nil
	}, dispatcher.Logged())

	d.Register(CommandHover, func(e dispatcher.Event) (any, error) {
		h, err := r.Lookup(e.Target)
		if err != nil {
			return nil, err
		}
		return h.desc.Label, nil
	}, dispatcher.Logged())

	d.Register(CommandVisited, func(e dispatcher.Event) (any, error) {
		h, err := r.Lookup(e.Target)
		if err != nil {
			return nil, err
		}
		return h.visits.Add(1), nil
	}, dispatcher.Buffered(64))
}
