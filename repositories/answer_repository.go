package repositories

import (
	"context"

	"livequiz/models"
	"livequiz/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnswerRepository struct {
	db *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Record writes one answer and applies it to the participant's totals in a
// single transaction. The participant row is locked first so concurrent
// submissions from the same participant serialise; a second answer to the
// same question is rejected by the existence check and, failing that, by the
// unique index. score receives the locked participant and returns the answer
// to store; it may mutate the participant's streak.
func (r *AnswerRepository) Record(ctx context.Context, participantID, questionID uint, score func(p *models.Participant) *models.Answer) (*models.Answer, *models.Participant, error) {
	var answer *models.Answer
	var participant models.Participant

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&participant, participantID)
		if result.Error == gorm.ErrRecordNotFound {
			return errors.New(errors.ErrCodeNotFound, "participant not found")
		}
		if result.Error != nil {
			return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to lock participant")
		}

		var existing int64
		if err := tx.Model(&models.Answer{}).
			Where("participant_id = ? AND question_id = ?", participantID, questionID).
			Count(&existing).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check answer")
		}
		if existing > 0 {
			return errors.New(errors.ErrCodeConflict, "answer already submitted")
		}

		answer = score(&participant)
		answer.ParticipantID = participantID
		answer.QuestionID = questionID

		if err := tx.Create(answer).Error; err != nil {
			if err == gorm.ErrDuplicatedKey {
				return errors.Wrap(err, errors.ErrCodeConflict, "answer already submitted")
			}
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record answer")
		}

		participant.Score += answer.Points
		participant.TotalAnswers++
		if answer.IsCorrect {
			participant.CorrectAnswers++
		}

		if err := tx.Model(&participant).
			Select("score", "correct_answers", "total_answers", "streak").
			Updates(&participant).Error; err != nil {
			return errors.Wrap(err, errors.ErrCodeInternalError, "failed to update participant")
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return answer, &participant, nil
}
