package models

import (
	"time"
)

// Answer is immutable once written; the composite unique index rejects a second
// answer from the same participant to the same question.
type Answer struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ParticipantID  uint      `json:"participant_id" gorm:"not null;uniqueIndex:idx_answer_participant_question"`
	QuestionID     uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_answer_participant_question"`
	SelectedOption int       `json:"selected_option" gorm:"not null"`
	IsCorrect      bool      `json:"is_correct" gorm:"not null"`
	Points         int       `json:"points" gorm:"not null"`
	TimeRemaining  int       `json:"time_remaining" gorm:"not null"` // seconds
	AnsweredAt     time.Time `json:"answered_at" gorm:"autoCreateTime"`

	// Relationships
	Participant Participant `json:"-"`
	Question    Question    `json:"-"`
}
