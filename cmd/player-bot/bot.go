package main

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"playroom/internal/client"
	"playroom/internal/config"
	"playroom/internal/logging"
	"playroom/internal/reconnect"
	"playroom/internal/ws"
)

func defaultRolls() int64 { return int64(rand.Intn(10) + 1) }

type bot struct {
	cfg   config.BotConfig
	api   *client.API
	slot  reconnect.Slot
	rolls func() int64
}

// seat resumes a remembered seat when possible and joins otherwise.
func (b *bot) seat(ctx context.Context) (reconnect.Capability, error) {
	logger := logging.Component("player_bot")
	rc := reconnect.NewClient(reconnect.NewCache(b.slot, b.cfg.CapabilityTTL, time.Now), b.api)

	res, err := rc.Resume(ctx)
	if err == nil && res.Capability.RoomID == b.cfg.RoomID {
		logger.Info().Str("room_id", b.cfg.RoomID).Int64("score", res.Membership.Score).Msg("resumed seat")
		return res.Capability, nil
	}
	if err != nil && !errors.Is(err, reconnect.ErrNoCapability) {
		logger.Warn().Err(err).Msg("resume failed, joining")
	}

	joined, err := b.api.Join(ctx, b.cfg.RoomID)
	if err != nil {
		return reconnect.Capability{}, err
	}
	if err := rc.Remember(ctx, joined.Capability); err != nil {
		logger.Warn().Err(err).Msg("remember capability failed")
	}
	logger.Info().
		Str("room_id", b.cfg.RoomID).
		Bool("already_joined", joined.AlreadyJoined).
		Int("players", joined.Room.CurrentPlayers).
		Msg("joined room")
	return joined.Capability, nil
}

func (b *bot) run(ctx context.Context) error {
	logger := logging.Component("player_bot")
	if _, err := b.seat(ctx); err != nil {
		return err
	}

	live, err := b.api.DialLive(ctx, b.cfg.RoomID)
	if err != nil {
		return err
	}
	defer live.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msg, err := live.Next()
			if err != nil {
				return
			}
			switch msg.Type {
			case ws.TypeOpponentUpdate:
				logger.Info().Str("opponent", msg.UserID).Int64("score", msg.Score).Bool("finished", msg.Finished).Msg("opponent update")
			case ws.TypePlayerDisconnected, ws.TypePlayerReconnected:
				logger.Info().Str("opponent", msg.UserID).Str("event", msg.Type).Msg("opponent presence")
			case ws.TypeAck:
				if !msg.Ok {
					logger.Warn().Str("op", msg.Op).Str("error", msg.Error).Msg("server rejected frame")
				}
			}
		}
	}()

	var score int64
	ticker := time.NewTicker(b.cfg.RoundDelay)
	defer ticker.Stop()
	for round := 0; round < b.cfg.Rounds; round++ {
		select {
		case <-ctx.Done():
			_ = live.Leave(true)
			<-done
			return ctx.Err()
		case <-done:
			return errors.New("live session closed by server")
		case <-ticker.C:
		}
		score += b.rolls()
		if err := live.Score(score); err != nil {
			return err
		}
	}
	if err := live.Finish(); err != nil {
		return err
	}
	logger.Info().Int64("score", score).Msg("finished")
	if err := live.Leave(false); err != nil {
		return err
	}
	<-done
	return b.slot.Clear(ctx)
}
