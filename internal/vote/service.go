// Package vote implements polls: creation with answer choices, one
// ballot per user enforced by the storage key, atomic tallying, and the
// result snapshot frozen on first read after expiry.
package vote

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flocknet/flockmind/internal/db"
	"github.com/flocknet/flockmind/internal/errs"
	"github.com/flocknet/flockmind/internal/models"
)

// Choice count bounds for a new poll.
const (
	MinChoices = 2
	MaxChoices = 4
)

// Service owns poll creation, ballot casting, and result reads.
type Service struct {
	repo   *db.Repository
	logger *zap.Logger
}

// NewService creates a new poll service
func NewService(repo *db.Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ChoiceResult is one line of a poll's tally.
type ChoiceResult struct {
	ChoiceID uuid.UUID `json:"choice_id"`
	Title    string    `json:"title"`
	Count    int64     `json:"count"`
}

// Result is the tally returned to readers. Final is true once the poll
// has expired and the snapshot is frozen.
type Result struct {
	VoteID  uuid.UUID      `json:"vote_id"`
	Total   int64          `json:"total"`
	Choices []ChoiceResult `json:"choices"`
	Final   bool           `json:"final"`
}

// Create persists a poll and its answer choices. The expiry must lie in
// the future and the choice titles must be non-blank.
func (s *Service) Create(ctx context.Context, ownerID int64, expireDate time.Time, titles []string) (*models.Vote, error) {
	if len(titles) < MinChoices || len(titles) > MaxChoices {
		return nil, errs.Validation("choices", "a poll needs two to four choices")
	}
	if !expireDate.After(time.Now().UTC()) {
		return nil, errs.Validation("expire_date", "poll expiry must be in the future")
	}
	for _, title := range titles {
		if strings.TrimSpace(title) == "" {
			return nil, errs.Validation("choices", "choice titles must not be blank")
		}
	}

	now := time.Now().UTC()
	poll := &models.Vote{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		ExpireDate: expireDate.UTC(),
		CreatedAt:  now,
	}

	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(poll).Error; err != nil {
			return err
		}
		for _, title := range titles {
			choice := &models.Choice{
				ID:        uuid.New(),
				Title:     strings.TrimSpace(title),
				CreatedAt: now,
			}
			if err := tx.WithContext(ctx).Create(choice).Error; err != nil {
				return err
			}
			join := &models.VoteChoice{VoteID: poll.ID, ChoiceID: choice.ID}
			if err := tx.WithContext(ctx).Create(join).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Poll created",
		zap.String("vote_id", poll.ID.String()),
		zap.Int64("owner_id", ownerID),
		zap.Int("choices", len(titles)))

	return poll, nil
}

// Cast records the actor's ballot for one choice. A second ballot from
// the same actor loses on the (user, vote) storage key and is rejected
// as a conflict. Ballots after expiry are rejected outright.
func (s *Service) Cast(ctx context.Context, voteID, choiceID uuid.UUID, actorID int64) error {
	return s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		var poll models.Vote
		err := tx.WithContext(ctx).First(&poll, "id = ?", voteID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrNotFound
		}
		if err != nil {
			return err
		}
		if poll.Expired(time.Now().UTC()) {
			return errs.Validation("vote", "poll has expired")
		}

		var belongs int64
		err = tx.WithContext(ctx).Model(&models.VoteChoice{}).
			Where("vote_id = ? AND choice_id = ?", voteID, choiceID).
			Count(&belongs).Error
		if err != nil {
			return err
		}
		if belongs == 0 {
			return errs.Validation("choice", "choice does not belong to this poll")
		}

		ballot := &models.VoteBallot{
			UserID:    actorID,
			VoteID:    voteID,
			ChoiceID:  choiceID,
			CreatedAt: time.Now().UTC(),
		}
		res := tx.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(ballot)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.ErrConflict
		}

		// The UPDATE takes its own row lock; the increment is atomic.
		return tx.WithContext(ctx).Model(&models.Choice{}).
			Where("id = ?", choiceID).
			UpdateColumn("count", gorm.Expr("count + ?", 1)).Error
	})
}

// HasVoted reports whether the actor already cast a ballot in the poll.
func (s *Service) HasVoted(ctx context.Context, voteID uuid.UUID, actorID int64) (bool, error) {
	if actorID == 0 {
		return false, nil
	}
	var count int64
	err := s.repo.DB().WithContext(ctx).Model(&models.VoteBallot{}).
		Where("user_id = ? AND vote_id = ?", actorID, voteID).
		Count(&count).Error
	return count > 0, err
}

// Results returns the poll tally. Live polls are tallied from the choice
// counters on every read. The first read after expiry computes the tally
// once under a row lock, stores it on the poll, and every later read
// serves that frozen snapshot even if counters drift afterwards.
func (s *Service) Results(ctx context.Context, voteID uuid.UUID) (*Result, error) {
	var result *Result
	err := s.repo.Transaction(ctx, func(tx *gorm.DB) error {
		var poll models.Vote
		err := db.LockForUpdate(tx.WithContext(ctx)).First(&poll, "id = ?", voteID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.ErrNotFound
		}
		if err != nil {
			return err
		}

		if poll.Result.Valid {
			frozen := &Result{}
			if err := json.Unmarshal([]byte(poll.Result.String), frozen); err != nil {
				return err
			}
			result = frozen
			return nil
		}

		tally, err := s.tally(ctx, tx, &poll)
		if err != nil {
			return err
		}

		if poll.Expired(time.Now().UTC()) {
			tally.Final = true
			raw, err := json.Marshal(tally)
			if err != nil {
				return err
			}
			if err := tx.WithContext(ctx).Model(&poll).
				UpdateColumn("result", string(raw)).Error; err != nil {
				return err
			}
		}
		result = tally
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// tally reads the live choice counters for a poll.
func (s *Service) tally(ctx context.Context, tx *gorm.DB, poll *models.Vote) (*Result, error) {
	var choiceIDs []uuid.UUID
	err := tx.WithContext(ctx).Model(&models.VoteChoice{}).
		Where("vote_id = ?", poll.ID).
		Pluck("choice_id", &choiceIDs).Error
	if err != nil {
		return nil, err
	}

	var choices []models.Choice
	if err := tx.WithContext(ctx).
		Where("id IN ?", choiceIDs).
		Order("created_at ASC").
		Find(&choices).Error; err != nil {
		return nil, err
	}

	result := &Result{VoteID: poll.ID, Choices: make([]ChoiceResult, 0, len(choices))}
	for _, choice := range choices {
		result.Total += choice.Count
		result.Choices = append(result.Choices, ChoiceResult{
			ChoiceID: choice.ID,
			Title:    choice.Title,
			Count:    choice.Count,
		})
	}
	return result, nil
}
