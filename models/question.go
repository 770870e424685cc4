package models

import (
	"time"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is owned by the question-management side; the engine only reads it.
type Question struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	Category      string     `json:"category" gorm:"not null;index"`
	Difficulty    Difficulty `json:"difficulty" gorm:"type:varchar(10);not null;default:'medium'"`
	Points        int        `json:"points" gorm:"not null"`
	Text          string     `json:"text" gorm:"type:text;not null"`
	Options       []string   `json:"options" gorm:"serializer:json"`
	CorrectOption int        `json:"correct_option" gorm:"not null"`
	TimeLimit     int        `json:"time_limit" gorm:"not null;default:20"` // seconds
	EventID       *uint      `json:"event_id,omitempty" gorm:"index"`
	Round         int        `json:"round" gorm:"default:1"`
	GameMode      *GameMode  `json:"game_mode,omitempty" gorm:"type:varchar(20)"` // nil accepted by every mode
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PublicQuestion is what participants see while a question is open.
type PublicQuestion struct {
	ID         uint       `json:"id"`
	Category   string     `json:"category"`
	Difficulty Difficulty `json:"difficulty"`
	Points     int        `json:"points"`
	Text       string     `json:"text"`
	Options    []string   `json:"options"`
	TimeLimit  int        `json:"time_limit"`
}

func (q *Question) Public() *PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return &PublicQuestion{
		ID:         q.ID,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Points:     q.Points,
		Text:       q.Text,
		Options:    options,
		TimeLimit:  q.TimeLimit,
	}
}

// QuestionFilter narrows the pool a game draws from. A nil EventID means every
// event; Mode matches questions tagged with it and untagged ones.
type QuestionFilter struct {
	EventID    *uint
	Mode       GameMode
	ExcludeIDs []uint
	Category   string
	Difficulty Difficulty
}
