package models

import (
	"fmt"
	"slices"
	"time"
)

// Participant is one player's presence in a game. Exactly one of UserID and
// GuestToken is set; the composite unique indexes keep one row per identity per game.
type Participant struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	GameID         uint      `json:"game_id" gorm:"not null;uniqueIndex:idx_participant_user;uniqueIndex:idx_participant_guest"`
	UserID         *uint     `json:"user_id,omitempty" gorm:"uniqueIndex:idx_participant_user"`
	GuestToken     *string   `json:"guest_token,omitempty" gorm:"size:64;uniqueIndex:idx_participant_guest"`
	DisplayName    string    `json:"display_name" gorm:"size:64;not null"`
	TeamID         *uint     `json:"team_id,omitempty"`
	Score          int       `json:"score" gorm:"not null;default:0"`
	CorrectAnswers int       `json:"correct_answers" gorm:"not null;default:0"`
	TotalAnswers   int       `json:"total_answers" gorm:"not null;default:0"`
	Streak         int       `json:"streak" gorm:"not null;default:0"`
	FoundWords     []string  `json:"found_words,omitempty" gorm:"serializer:json"`
	JoinedAt       time.Time `json:"joined_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relationships
	Game Game `json:"-"`
}

func (p *Participant) Identity() Identity {
	if p.UserID != nil {
		return Registered(*p.UserID)
	}
	token := ""
	if p.GuestToken != nil {
		token = *p.GuestToken
	}
	return Guest(p.DisplayName, token)
}

// Label is the name shown on leaderboards and in room events.
func (p *Participant) Label() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.GuestToken != nil && *p.GuestToken != "" {
		return "Guest " + shortID(*p.GuestToken)
	}
	return fmt.Sprintf("Guest %d", p.ID)
}

func (p *Participant) HasFound(word string) bool {
	return slices.Contains(p.FoundWords, word)
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
