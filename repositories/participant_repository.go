package repositories

import (
	"context"

	"livequiz/models"
	"livequiz/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Create inserts a participant. The (game, identity) unique indexes turn a
// concurrent duplicate join into a conflict.
func (r *ParticipantRepository) Create(ctx context.Context, participant *models.Participant) error {
	err := r.db.WithContext(ctx).Create(participant).Error
	if err == gorm.ErrDuplicatedKey {
		return errors.Wrap(err, errors.ErrCodeConflict, "already joined this room")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create participant")
	}
	return nil
}

// FindByIdentity looks up the participant a registered user or guest token maps to.
func (r *ParticipantRepository) FindByIdentity(ctx context.Context, gameID uint, identity models.Identity) (*models.Participant, error) {
	query := r.db.WithContext(ctx).Where("game_id = ?", gameID)
	if identity.IsGuest() {
		query = query.Where("guest_token = ?", identity.Token)
	} else {
		query = query.Where("user_id = ?", identity.UserID)
	}

	var participant models.Participant
	result := query.First(&participant)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "participant not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get participant")
	}

	return &participant, nil
}

func (r *ParticipantRepository) FindInGame(ctx context.Context, gameID, participantID uint) (*models.Participant, error) {
	var participant models.Participant
	result := r.db.WithContext(ctx).
		Where("id = ? AND game_id = ?", participantID, gameID).
		First(&participant)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "participant not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get participant")
	}

	return &participant, nil
}

func (r *ParticipantRepository) ListByGame(ctx context.Context, gameID uint) ([]models.Participant, error) {
	var participants []models.Participant
	result := r.db.WithContext(ctx).
		Where("game_id = ?", gameID).
		Order("id ASC").
		Find(&participants)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to list participants")
	}

	return participants, nil
}

func (r *ParticipantRepository) CountByGame(ctx context.Context, gameID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Participant{}).
		Where("game_id = ?", gameID).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count participants")
	}
	return int(count), nil
}

// CountByGames returns participant counts keyed by game id.
func (r *ParticipantRepository) CountByGames(ctx context.Context, gameIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(gameIDs))
	if len(gameIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		GameID uint
		Count  int
	}
	err := r.db.WithContext(ctx).Model(&models.Participant{}).
		Select("game_id, count(*) AS count").
		Where("game_id IN ?", gameIDs).
		Group("game_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count participants")
	}

	for _, row := range rows {
		counts[row.GameID] = row.Count
	}
	return counts, nil
}

// AddWord records a found word under a row lock so two submissions of the same
// word cannot both score. award sees the participant with the word already
// appended and returns the points to add.
func (r *ParticipantRepository) AddWord(ctx context.Context, participantID uint, word string, award func(p *models.Participant) int) (*models.Participant, int, error) {
	var points int
	var participant models.Participant

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&participant, participantID)
		if result.Error == gorm.ErrRecordNotFound {
			return errors.New(errors.ErrCodeNotFound, "participant not found")
		}
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to lock participant")
		}

		if participant.HasFound(word) {
			return errors.New(errors.ErrCodeConflict, "word already found")
		}

		participant.FoundWords = append(participant.FoundWords, word)
		points = award(&participant)
		participant.Score += points

		if err := tx.Model(&participant).Select("found_words", "score").Updates(&participant).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record word")
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return &participant, points, nil
}
