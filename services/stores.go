package services

import (
	"context"
	"time"

	"livequiz/models"
)

// The engine talks to persistence through these interfaces; the gorm
// implementations live in the repositories package.

type GameStore interface {
	Create(ctx context.Context, game *models.Game) error
	CodeExists(ctx context.Context, code string) (bool, error)
	FindByCode(ctx context.Context, code string) (*models.Game, error)
	FindByID(ctx context.Context, id uint) (*models.Game, error)
	ListActive(ctx context.Context) ([]models.Game, error)
	UpdateStatus(ctx context.Context, id uint, from, to models.GameStatus, at time.Time) error
	AppendUsedQuestion(ctx context.Context, id, questionID uint, at time.Time) (*models.Game, error)
	CloseQuestion(ctx context.Context, id, questionID uint) error
	ClearCurrentQuestion(ctx context.Context, id uint) error
}

type ParticipantStore interface {
	Create(ctx context.Context, participant *models.Participant) error
	FindByIdentity(ctx context.Context, gameID uint, identity models.Identity) (*models.Participant, error)
	FindInGame(ctx context.Context, gameID, participantID uint) (*models.Participant, error)
	ListByGame(ctx context.Context, gameID uint) ([]models.Participant, error)
	CountByGame(ctx context.Context, gameID uint) (int, error)
	CountByGames(ctx context.Context, gameIDs []uint) (map[uint]int, error)
	AddWord(ctx context.Context, participantID uint, word string, award func(p *models.Participant) int) (*models.Participant, int, error)
}

type AnswerStore interface {
	Record(ctx context.Context, participantID, questionID uint, score func(p *models.Participant) *models.Answer) (*models.Answer, *models.Participant, error)
}

type QuestionStore interface {
	FindByID(ctx context.Context, id uint) (*models.Question, error)
	FindCandidates(ctx context.Context, filter models.QuestionFilter) ([]models.Question, error)
	Count(ctx context.Context, filter models.QuestionFilter) (int, error)
	Categories(ctx context.Context, filter models.QuestionFilter) ([]string, error)
}

type DirectoryStore interface {
	EventExists(ctx context.Context, id uint) (bool, error)
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

// SnapshotStore caches the pollable room state. Load returns nil, nil on a miss.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *RoomSnapshot) error
	Load(ctx context.Context, code string) (*RoomSnapshot, error)
	Delete(ctx context.Context, code string) error
}
