// Package scores relays each player's running score and finish flag to the
// other players in the room. Delivery is last write wins.
package scores

import (
	"context"
	"expvar"
	"sync"
	"time"

	"playroom/internal/session"
	"playroom/internal/store"
)

const (
	opScore  = "score"
	opFinish = "finish"
)

var (
	metricScorePublished  = expvar.NewInt("score_published_total")
	metricFinishPublished = expvar.NewInt("finish_published_total")
	metricRoomsFinished   = expvar.NewInt("rooms_finished_total")
)

// OpponentUpdate is another player's row as last written.
type OpponentUpdate struct {
	UserID     string     `json:"user_id"`
	Username   string     `json:"username"`
	Score      int64      `json:"score"`
	Finished   bool       `json:"finished"`
	FinishTime *time.Time `json:"finish_time,omitempty"`
	Connection string     `json:"connection_status"`
}

type Relay struct {
	h *session.Handle
}

func NewRelay(h *session.Handle) *Relay {
	return &Relay{h: h}
}

// Publish writes score to the caller's own seat. Store failures are reported
// to the session's failure sink, not returned.
func (r *Relay) Publish(ctx context.Context, roomID, userID string, score int64) error {
	if err := r.h.Authorize(userID); err != nil {
		return err
	}
	now := r.h.Now()
	if err := r.h.Store().UpdateScore(ctx, roomID, userID, score, now); err != nil {
		r.report(opScore, roomID, userID, err, now)
		return nil
	}
	metricScorePublished.Add(1)
	return nil
}

// PublishFinish marks the caller finished and closes the room once every
// seat has finished.
func (r *Relay) PublishFinish(ctx context.Context, roomID, userID string) error {
	if err := r.h.Authorize(userID); err != nil {
		return err
	}
	now := r.h.Now()
	st := r.h.Store()
	if err := st.MarkFinished(ctx, roomID, userID, now); err != nil {
		r.report(opFinish, roomID, userID, err, now)
		return nil
	}
	metricFinishPublished.Add(1)
	done, err := st.FinishRoomIfComplete(ctx, roomID)
	if err != nil {
		r.report(opFinish, roomID, userID, err, now)
		return nil
	}
	if done {
		metricRoomsFinished.Add(1)
		lg := r.h.Logger()
		lg.Info().Str("room_id", roomID).Msg("room finished")
	}
	return nil
}

func (r *Relay) report(op, roomID, userID string, err error, at time.Time) {
	r.h.Failures().Report(session.Failure{Op: op, RoomID: roomID, UserID: userID, Err: err, At: at})
}

// Subscribe streams other players' seat updates for roomID.
func (r *Relay) Subscribe(ctx context.Context, roomID string) (*Feed, error) {
	if roomID == "" {
		return nil, session.ErrInvalidRequest
	}
	sub, err := r.h.Store().Subscribe(ctx, roomID)
	if err != nil {
		return nil, session.Unavailable(err)
	}
	f := &Feed{
		self:    r.h.Identity().UserID,
		sub:     sub,
		updates: make(chan OpponentUpdate, feedBuffer),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go f.run()
	return f, nil
}

const feedBuffer = 16

type Feed struct {
	self    string
	sub     *store.Subscription
	updates chan OpponentUpdate
	stop    chan struct{}
	once    sync.Once
	done    chan struct{}
}

func (f *Feed) Updates() <-chan OpponentUpdate {
	return f.updates
}

// Close stops delivery and closes Updates. Safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() {
		close(f.stop)
		f.sub.Close()
	})
	<-f.done
}

func (f *Feed) run() {
	defer close(f.done)
	defer close(f.updates)
	for {
		select {
		case <-f.stop:
			return
		case c, ok := <-f.sub.C():
			if !ok {
				return
			}
			if c.Kind != store.KindMembership || c.Membership == nil || c.Membership.UserID == f.self {
				continue
			}
			m := c.Membership
			u := OpponentUpdate{
				UserID:     m.UserID,
				Username:   m.Username,
				Score:      m.Score,
				Finished:   m.Finished,
				FinishTime: m.FinishTime,
				Connection: m.ConnectionStatus,
			}
			select {
			case f.updates <- u:
			case <-f.stop:
				return
			}
		}
	}
}
