package services

import (
	"context"
	"sort"

	"livequiz/models"
)

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID uint   `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Score         int    `json:"score"`
	CorrectCount  int    `json:"correct_count"`
	TotalAnswers  int    `json:"total_answers"`
	Streak        int    `json:"streak"`
	WordsFound    int    `json:"words_found"`
}

// Rank orders participants by score, then correct answers, both descending.
// Remaining ties keep join order so repeated calls agree.
func Rank(participants []models.Participant) []LeaderboardEntry {
	sorted := make([]models.Participant, len(participants))
	copy(sorted, participants)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.CorrectAnswers != b.CorrectAnswers {
			return a.CorrectAnswers > b.CorrectAnswers
		}
		return a.ID < b.ID
	})

	entries := make([]LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		entries[i] = LeaderboardEntry{
			Rank:          i + 1,
			ParticipantID: p.ID,
			DisplayName:   p.Label(),
			Score:         p.Score,
			CorrectCount:  p.CorrectAnswers,
			TotalAnswers:  p.TotalAnswers,
			Streak:        p.Streak,
			WordsFound:    len(p.FoundWords),
		}
	}
	return entries
}

type Leaderboard struct {
	participants ParticipantStore
}

func NewLeaderboard(participants ParticipantStore) *Leaderboard {
	return &Leaderboard{participants: participants}
}

func (l *Leaderboard) Rank(ctx context.Context, game *models.Game) ([]LeaderboardEntry, error) {
	participants, err := l.participants.ListByGame(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	return Rank(participants), nil
}
