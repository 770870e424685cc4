package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"livequiz/metrics"
	"livequiz/models"
	"livequiz/pkg/errors"
	"livequiz/pkg/logger"
)

const (
	RoomCodeLength          = 6
	DefaultRoomCodeAttempts = 10
	roomCodeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func GenerateRoomCode() (string, error) {
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// RoomRegistry allocates room codes and guards the game status machine.
type RoomRegistry struct {
	games    GameStore
	attempts int
	newCode  func() (string, error)
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewRoomRegistry(games GameStore, attempts int, m *metrics.Metrics) *RoomRegistry {
	if attempts <= 0 {
		attempts = DefaultRoomCodeAttempts
	}
	return &RoomRegistry{
		games:    games,
		attempts: attempts,
		newCode:  GenerateRoomCode,
		metrics:  m,
		now:      time.Now,
	}
}

// CreateRoom assigns a fresh code to game and persists it in waiting status.
// Each candidate is checked against every game ever created and the insert
// itself is guarded by the unique index; a collision on either consumes one
// attempt.
func (r *RoomRegistry) CreateRoom(ctx context.Context, game *models.Game) (*models.Game, error) {
	game.Status = models.StatusWaiting

	for attempt := 1; attempt <= r.attempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to generate room code")
		}

		taken, err := r.games.CodeExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			r.metrics.CodeCollision()
			logger.Debug("Room code collision", "room_code", code, "attempt", attempt)
			continue
		}

		game.RoomCode = code
		err = r.games.Create(ctx, game)
		if errors.Is(err, errors.ErrCodeConflict) {
			r.metrics.CodeCollision()
			logger.Debug("Room code taken on insert", "room_code", code, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		r.metrics.RoomCreated(string(game.Mode))
		logger.Info("Room created", "room_code", code, "mode", game.Mode, "game_id", game.ID, "attempts", attempt)
		return game, nil
	}

	logger.Error("Room code allocation exhausted", "attempts", r.attempts)
	return nil, errors.New(errors.ErrCodeAllocationExhausted, "could not allocate a room code")
}

// Lookup finds a game by code, ignoring case and surrounding whitespace.
func (r *RoomRegistry) Lookup(ctx context.Context, code string) (*models.Game, error) {
	normalized := NormalizeRoomCode(code)
	if !ValidRoomCode(normalized) {
		return nil, errors.New(errors.ErrCodeValidationFailed, "room code must be 6 letters or digits")
	}
	return r.games.FindByCode(ctx, normalized)
}

func (r *RoomRegistry) Transition(ctx context.Context, code string, to models.GameStatus) (*models.Game, error) {
	game, err := r.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := r.Advance(ctx, game, to); err != nil {
		return nil, err
	}
	return game, nil
}

// Advance moves an already loaded game one step forward and updates it in place.
func (r *RoomRegistry) Advance(ctx context.Context, game *models.Game, to models.GameStatus) error {
	if !game.Status.CanTransitionTo(to) {
		return errors.New(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("room cannot move from %s to %s", game.Status, to))
	}

	at := r.now().UTC()
	if err := r.games.UpdateStatus(ctx, game.ID, game.Status, to, at); err != nil {
		return err
	}

	logger.Info("Room status changed", "room_code", game.RoomCode, "from", game.Status, "to", to)

	game.Status = to
	switch to {
	case models.StatusInProgress:
		game.StartedAt = &at
	case models.StatusFinished:
		game.FinishedAt = &at
	}
	return nil
}

func (r *RoomRegistry) ListActive(ctx context.Context) ([]models.Game, error) {
	return r.games.ListActive(ctx)
}
