package irrelay

import (
	"context"
	"path/filepath"
)

type SlotHandlers map[string]SlotHandler
type SlotHandler func(Slot, Capture)

// RouteCodes routes new captures to the handlers of the key slots holding the
// captured value until ctx is canceled. Handler keys are slot names or
// filepath.Match patterns such as "relay*". Repeat captures are not routed.
func RouteCodes(ctx context.Context, captures <-chan Capture, keys func() KeySet, handlers SlotHandlers) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case capture := <-captures:
			if !capture.New {
				continue
			}

			for _, slot := range keys().Match(capture.Code.Value) {
				// Check for exact match
				if h := handlers[string(slot)]; h != nil {
					h(slot, capture)
					continue
				}

				// Check for pattern matches
				for pattern, h := range handlers {
					matched, _ := filepath.Match(pattern, string(slot))
					if matched {
						h(slot, capture)
					}
				}
			}
		}
	}
}
