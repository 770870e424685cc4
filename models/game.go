package models

import (
	"slices"
	"time"

	"gorm.io/gorm"
)

type GameMode string

const (
	ModeTurnBased   GameMode = "turn-based"
	ModeBoardSelect GameMode = "board-select"
	ModeWordSearch  GameMode = "word-search"
)

func (m GameMode) Valid() bool {
	switch m {
	case ModeTurnBased, ModeBoardSelect, ModeWordSearch:
		return true
	}
	return false
}

// UsesQuestions reports whether the mode draws from the question pool.
func (m GameMode) UsesQuestions() bool {
	return m == ModeTurnBased || m == ModeBoardSelect
}

type GameStatus string

const (
	StatusWaiting    GameStatus = "waiting"
	StatusInProgress GameStatus = "in-progress"
	StatusFinished   GameStatus = "finished"
)

// CanTransitionTo allows a single forward step: waiting -> in-progress -> finished.
func (s GameStatus) CanTransitionTo(next GameStatus) bool {
	switch s {
	case StatusWaiting:
		return next == StatusInProgress
	case StatusInProgress:
		return next == StatusFinished
	}
	return false
}

func (s GameStatus) Active() bool {
	return s == StatusWaiting || s == StatusInProgress
}

type Game struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	Name              string         `json:"name" gorm:"not null"`
	RoomCode          string         `json:"room_code" gorm:"size:6;uniqueIndex;not null"`
	Mode              GameMode       `json:"mode" gorm:"type:varchar(20);not null"`
	Status            GameStatus     `json:"status" gorm:"type:varchar(20);not null;default:'waiting';index"`
	EventID           *uint          `json:"event_id,omitempty" gorm:"index"`
	UsedQuestionIDs   []uint         `json:"used_question_ids" gorm:"serializer:json"`
	CurrentQuestionID *uint          `json:"current_question_id,omitempty"`
	QuestionServedAt  *time.Time     `json:"question_served_at,omitempty"`
	TargetCount       int            `json:"target_count" gorm:"not null;default:10"`
	Words             []string       `json:"-" gorm:"serializer:json"`
	GridSize          int            `json:"grid_size,omitempty"`
	TimeLimit         int            `json:"time_limit,omitempty"` // seconds, word-search
	SharedGrid        bool           `json:"shared_grid,omitempty"`
	StartedAt         *time.Time     `json:"started_at"`
	FinishedAt        *time.Time     `json:"finished_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Event        *Event        `json:"event,omitempty"`
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:GameID"`
}

func (g *Game) HasServed(questionID uint) bool {
	return slices.Contains(g.UsedQuestionIDs, questionID)
}

func (g *Game) ServedCount() int {
	return len(g.UsedQuestionIDs)
}

// TargetReached reports whether the game has served as many questions as it was created for.
func (g *Game) TargetReached() bool {
	return g.TargetCount > 0 && len(g.UsedQuestionIDs) >= g.TargetCount
}
