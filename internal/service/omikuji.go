// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"omikuji-bot/internal/model"
	"omikuji-bot/internal/repository"
)

// Common errors for draw operations.
var (
	ErrInvalidUserID = errors.New("user id is required")
	ErrNoOutcome     = errors.New("drawer produced no outcome")
)

// DrawStatus is the outcome class of a draw attempt.
type DrawStatus int

const (
	StatusDrawn        DrawStatus = iota // A new fortune was drawn
	StatusAlreadyDrawn                   // The user already drew today
)

// String returns the status name.
func (s DrawStatus) String() string {
	switch s {
	case StatusDrawn:
		return "drawn"
	case StatusAlreadyDrawn:
		return "already_drawn"
	default:
		return fmt.Sprintf("DrawStatus(%d)", int(s))
	}
}

// Drawer produces the random part of a draw.
// *omikuji.Selector is the production implementation.
type Drawer interface {
	DrawOutcome() string
	DrawMessage() string
	RewardFor(label string) int64
}

// DrawResult contains the result of a draw attempt.
type DrawResult struct {
	Status  DrawStatus
	Label   string // Empty unless Status is StatusDrawn
	Message string // Flavor text, empty unless Status is StatusDrawn
	Reward  int64  // Bonus credit granted by this draw
	Balance int64  // The user's balance after the attempt
	Date    string // The day key the attempt was evaluated against
}

// UserStatus is a read-only view of a user's record.
type UserStatus struct {
	Record  *model.UserRecord
	CanDraw bool
	Today   string
}

// OmikujiService runs daily fortune draws against a record store.
type OmikujiService struct {
	store   repository.Store
	tracker *Tracker
	drawer  Drawer
}

// NewOmikujiService creates a new OmikujiService instance.
func NewOmikujiService(store repository.Store, tracker *Tracker, drawer Drawer) *OmikujiService {
	if tracker == nil {
		tracker = NewTracker(nil, nil)
	}
	return &OmikujiService{
		store:   store,
		tracker: tracker,
		drawer:  drawer,
	}
}

// Tracker returns the eligibility tracker used by the service.
func (s *OmikujiService) Tracker() *Tracker {
	return s.tracker
}

// AttemptDraw draws today's fortune for userID.
//
// The whole load, check, draw, mutate and save sequence runs inside one
// store update, so a user can never get two successful draws for the same
// day and concurrent draws never overwrite each other's records. An unknown
// user is created with defaults. When the user has already drawn today the
// result has StatusAlreadyDrawn and nothing is written.
func (s *OmikujiService) AttemptDraw(ctx context.Context, userID string) (*DrawResult, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	var result *DrawResult
	err := s.store.Update(ctx, func(snap model.Snapshot) (bool, error) {
		rec := snap.Ensure(userID)
		today := s.tracker.TodayKey()

		if !s.tracker.CanDraw(rec, today) {
			result = &DrawResult{
				Status:  StatusAlreadyDrawn,
				Balance: rec.Balance,
				Date:    today,
			}
			return false, nil
		}

		label := s.drawer.DrawOutcome()
		if label == "" {
			// Leave the day unconsumed.
			return false, ErrNoOutcome
		}
		message := s.drawer.DrawMessage()
		reward := s.drawer.RewardFor(label)

		// Credits are only ever added.
		if reward > 0 {
			rec.Balance += reward
		}
		s.tracker.MarkDrawn(rec, today)

		result = &DrawResult{
			Status:  StatusDrawn,
			Label:   label,
			Message: message,
			Reward:  reward,
			Balance: rec.Balance,
			Date:    today,
		}
		return true, nil
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Draw failed")
		return nil, fmt.Errorf("failed to draw omikuji: %w", err)
	}

	if result.Status == StatusDrawn {
		log.Info().
			Str("user_id", userID).
			Str("date", result.Date).
			Str("label", result.Label).
			Int64("reward", result.Reward).
			Int64("balance", result.Balance).
			Msg("Omikuji drawn")
	} else {
		log.Debug().
			Str("user_id", userID).
			Str("date", result.Date).
			Msg("Omikuji already drawn today")
	}

	return result, nil
}

// GetStatus returns the user's record and whether a draw is still available
// today. Unknown users are reported with defaults and are not created.
func (s *OmikujiService) GetStatus(ctx context.Context, userID string) (*UserStatus, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user status: %w", err)
	}

	today := s.tracker.TodayKey()
	return &UserStatus{
		Record:  rec,
		CanDraw: s.tracker.CanDraw(rec, today),
		Today:   today,
	}, nil
}
