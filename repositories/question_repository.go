package repositories

import (
	"context"

	"livequiz/models"
	"livequiz/pkg/errors"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

func filterScope(f models.QuestionFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if f.EventID != nil {
			db = db.Where("event_id = ?", *f.EventID)
		}
		if f.Mode != "" {
			// untagged questions predate mode scoping and stay eligible everywhere
			db = db.Where("game_mode = ? OR game_mode IS NULL", f.Mode)
		}
		if len(f.ExcludeIDs) > 0 {
			db = db.Where("id NOT IN ?", f.ExcludeIDs)
		}
		if f.Category != "" {
			db = db.Where("category = ?", f.Category)
		}
		if f.Difficulty != "" {
			db = db.Where("difficulty = ?", f.Difficulty)
		}
		return db
	}
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	result := r.db.WithContext(ctx).First(&question, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "question not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get question")
	}

	return &question, nil
}

// FindCandidates returns every question matching the filter.
func (r *QuestionRepository) FindCandidates(ctx context.Context, filter models.QuestionFilter) ([]models.Question, error) {
	var questions []models.Question
	result := r.db.WithContext(ctx).
		Scopes(filterScope(filter)).
		Order("id ASC").
		Find(&questions)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to load questions")
	}

	return questions, nil
}

func (r *QuestionRepository) Count(ctx context.Context, filter models.QuestionFilter) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Question{}).
		Scopes(filterScope(filter)).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count questions")
	}
	return int(count), nil
}

// Categories lists the distinct categories in the filtered pool, sorted.
func (r *QuestionRepository) Categories(ctx context.Context, filter models.QuestionFilter) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).Model(&models.Question{}).
		Scopes(filterScope(filter)).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list categories")
	}
	return categories, nil
}
