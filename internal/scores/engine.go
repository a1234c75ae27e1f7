package scores

import "context"

// Update is what the game engine reports after each move.
type Update struct {
	Score    int64
	Finished bool
}

// Pump forwards engine updates until the engine reports a finish, closes
// its channel or ctx ends. A finish is published after the final score.
func (r *Relay) Pump(ctx context.Context, roomID, userID string, updates <-chan Update) error {
	if err := r.h.Authorize(userID); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.Publish(ctx, roomID, userID, u.Score); err != nil {
				return err
			}
			if u.Finished {
				return r.PublishFinish(ctx, roomID, userID)
			}
		}
	}
}
