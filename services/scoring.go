package services

import (
	"context"

	"livequiz/metrics"
	"livequiz/models"
	"livequiz/pkg/logger"
)

const (
	MaxTimeBonus            = 50
	StreakInterval          = 3
	StreakBonus             = 50
	WordPoints              = 100
	CompletionPointsPerSecs = 2
)

type AnswerScore struct {
	IsCorrect   bool `json:"is_correct"`
	Points      int  `json:"points"`
	TimeBonus   int  `json:"time_bonus"`
	StreakBonus int  `json:"streak_bonus"`
	Streak      int  `json:"streak"`
}

// ClampRemaining bounds a reported time remaining to [0, limit].
func ClampRemaining(remaining, limit int) int {
	if remaining < 0 {
		return 0
	}
	if limit > 0 && remaining > limit {
		return limit
	}
	return remaining
}

// ScoreAnswer is all-or-nothing: a correct answer earns the question's points,
// a speed bonus of up to 50 and, on every third consecutive correct answer, a
// flat streak bonus. A wrong answer earns nothing and resets the streak.
func ScoreAnswer(q *models.Question, selected, timeRemaining, streak int) AnswerScore {
	if selected != q.CorrectOption {
		return AnswerScore{}
	}

	score := AnswerScore{IsCorrect: true, Streak: streak + 1}
	if q.TimeLimit > 0 {
		score.TimeBonus = ClampRemaining(timeRemaining, q.TimeLimit) * MaxTimeBonus / q.TimeLimit
	}
	if score.Streak%StreakInterval == 0 {
		score.StreakBonus = StreakBonus
	}
	score.Points = q.Points + score.TimeBonus + score.StreakBonus
	return score
}

// CompletionBonus is awarded once, on the find that completes a word list.
func CompletionBonus(timeLimit, elapsedSeconds int) int {
	left := timeLimit - elapsedSeconds
	if left < 0 {
		return 0
	}
	return left * CompletionPointsPerSecs
}

type WordScore struct {
	Points          int  `json:"points"`
	CompletionBonus int  `json:"completion_bonus"`
	Completed       bool `json:"completed"`
}

// ScoringEngine applies scores to persisted participant totals.
type ScoringEngine struct {
	answers      AnswerStore
	participants ParticipantStore
	metrics      *metrics.Metrics
}

func NewScoringEngine(answers AnswerStore, participants ParticipantStore, m *metrics.Metrics) *ScoringEngine {
	return &ScoringEngine{answers: answers, participants: participants, metrics: m}
}

// SubmitAnswer scores and records one answer atomically with the participant's
// totals. A second answer to the same question is a conflict.
func (e *ScoringEngine) SubmitAnswer(ctx context.Context, participantID uint, q *models.Question, selected, timeRemaining int) (*models.Answer, *models.Participant, AnswerScore, error) {
	var score AnswerScore

	answer, participant, err := e.answers.Record(ctx, participantID, q.ID, func(p *models.Participant) *models.Answer {
		score = ScoreAnswer(q, selected, timeRemaining, p.Streak)
		p.Streak = score.Streak
		return &models.Answer{
			SelectedOption: selected,
			IsCorrect:      score.IsCorrect,
			Points:         score.Points,
			TimeRemaining:  ClampRemaining(timeRemaining, q.TimeLimit),
		}
	})
	if err != nil {
		return nil, nil, AnswerScore{}, err
	}

	e.metrics.AnswerScored(score.IsCorrect)
	logger.Info("Answer scored",
		"participant_id", participantID,
		"question_id", q.ID,
		"correct", score.IsCorrect,
		"points", score.Points,
		"streak", score.Streak)

	return answer, participant, score, nil
}

// AwardWord records a newly found word. words is the list on the
// participant's grid; finding its last word adds the completion bonus.
func (e *ScoringEngine) AwardWord(ctx context.Context, participantID uint, word string, words []string, timeLimit, elapsedSeconds int) (*models.Participant, WordScore, error) {
	var score WordScore

	participant, _, err := e.participants.AddWord(ctx, participantID, word, func(p *models.Participant) int {
		score = WordScore{Points: WordPoints}
		if foundAll(p.FoundWords, words) {
			score.Completed = true
			score.CompletionBonus = CompletionBonus(timeLimit, elapsedSeconds)
		}
		return score.Points + score.CompletionBonus
	})
	if err != nil {
		return nil, WordScore{}, err
	}

	e.metrics.WordFound()
	logger.Info("Word scored",
		"participant_id", participantID,
		"word", word,
		"points", score.Points,
		"completion_bonus", score.CompletionBonus)

	return participant, score, nil
}

func foundAll(found, words []string) bool {
	if len(words) == 0 {
		return false
	}
	set := make(map[string]bool, len(found))
	for _, w := range found {
		set[w] = true
	}
	for _, w := range words {
		if !set[w] {
			return false
		}
	}
	return true
}
