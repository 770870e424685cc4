package repositories

import (
	"context"
	"fmt"
	"time"

	"livequiz/models"
	"livequiz/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{db: db}
}

// Create inserts a new game. A room code that is already taken surfaces as a
// conflict so the caller can retry with another candidate.
func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	err := r.db.WithContext(ctx).Create(game).Error
	if err == gorm.ErrDuplicatedKey {
		return errors.Wrap(err, errors.ErrCodeConflict, "room code already taken")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create game")
	}
	return nil
}

// CodeExists checks every game ever created, soft-deleted ones included.
func (r *GameRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Game{}).
		Where("room_code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to check room code")
	}
	return count > 0, nil
}

func (r *GameRepository) FindByCode(ctx context.Context, code string) (*models.Game, error) {
	var game models.Game
	result := r.db.WithContext(ctx).Where("room_code = ?", code).First(&game)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "room not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get room")
	}

	return &game, nil
}

func (r *GameRepository) FindByID(ctx context.Context, id uint) (*models.Game, error) {
	var game models.Game
	result := r.db.WithContext(ctx).First(&game, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "room not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get room")
	}

	return &game, nil
}

// ListActive returns waiting and in-progress games, newest first.
func (r *GameRepository) ListActive(ctx context.Context) ([]models.Game, error) {
	var games []models.Game
	result := r.db.WithContext(ctx).
		Where("status IN ?", []models.GameStatus{models.StatusWaiting, models.StatusInProgress}).
		Order("created_at DESC").
		Find(&games)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list rooms")
	}

	return games, nil
}

// UpdateStatus moves a game from one status to the next. The update only
// matches while the row still holds the expected status, so two concurrent
// transitions cannot both succeed.
func (r *GameRepository) UpdateStatus(ctx context.Context, id uint, from, to models.GameStatus, at time.Time) error {
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.StatusInProgress:
		updates["started_at"] = at
	case models.StatusFinished:
		updates["finished_at"] = at
	}

	result := r.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update room status")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeInvalidTransition, fmt.Sprintf("room is no longer %s", from))
	}

	return nil
}

// AppendUsedQuestion records questionID as served and current under a row lock.
func (r *GameRepository) AppendUsedQuestion(ctx context.Context, id, questionID uint, at time.Time) (*models.Game, error) {
	var game models.Game

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&game, id)
		if result.Error == gorm.ErrRecordNotFound {
			return errors.New(errors.ErrCodeNotFound, "room not found")
		}
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to lock room")
		}

		if game.Status != models.StatusInProgress {
			return errors.New(errors.ErrCodeInvalidTransition, "room is not in progress")
		}
		if game.HasServed(questionID) {
			return errors.New(errors.ErrCodeConflict, "question already served")
		}

		game.UsedQuestionIDs = append(game.UsedQuestionIDs, questionID)
		game.CurrentQuestionID = &questionID
		game.QuestionServedAt = &at

		if err := tx.Model(&game).Select("used_question_ids", "current_question_id", "question_served_at").Updates(&game).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record served question")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &game, nil
}

// CloseQuestion unsets the open question only while questionID is still the
// current one, so a newer question is never closed by a stale timer.
func (r *GameRepository) CloseQuestion(ctx context.Context, id, questionID uint) error {
	err := r.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ? AND current_question_id = ?", id, questionID).
		Update("current_question_id", nil).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to close question")
	}
	return nil
}

// ClearCurrentQuestion unsets the open question, used when a game ends.
func (r *GameRepository) ClearCurrentQuestion(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.Game{}).
		Where("id = ?", id).
		Update("current_question_id", nil).Error
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to clear current question")
	}
	return nil
}
