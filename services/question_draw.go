package services

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"livequiz/metrics"
	"livequiz/models"
	"livequiz/pkg/errors"
	"livequiz/pkg/logger"
)

// QuestionDraw picks the next unseen question for a game. Draws for one game
// are serialised in-process; the used-set itself is guarded by a row lock in
// the store.
type QuestionDraw struct {
	questions QuestionStore
	games     GameStore
	pick      func(n int) int
	now       func() time.Time
	metrics   *metrics.Metrics

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewQuestionDraw(questions QuestionStore, games GameStore, m *metrics.Metrics) *QuestionDraw {
	return &QuestionDraw{
		questions: questions,
		games:     games,
		pick:      rand.IntN,
		now:       time.Now,
		metrics:   m,
		locks:     make(map[uint]*sync.Mutex),
	}
}

// PoolFilter is the game's full eligible pool, served questions included.
func PoolFilter(game *models.Game) models.QuestionFilter {
	return models.QuestionFilter{
		EventID: game.EventID,
		Mode:    game.Mode,
	}
}

func (d *QuestionDraw) lock(gameID uint) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[gameID] = l
	}
	return l
}

// Forget releases the per-game lock once a game has finished.
func (d *QuestionDraw) Forget(gameID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.locks, gameID)
}

// DrawNext draws uniformly from every unseen question in the game's pool.
func (d *QuestionDraw) DrawNext(ctx context.Context, game *models.Game) (*models.Question, error) {
	return d.draw(ctx, game, []models.QuestionFilter{{}})
}

// DrawPreferred tries category and difficulty, then category alone, then the
// whole remaining pool. Reaching the game's target count ends the draw just
// like an empty pool does.
func (d *QuestionDraw) DrawPreferred(ctx context.Context, game *models.Game, category string, difficulty models.Difficulty) (*models.Question, error) {
	var narrowings []models.QuestionFilter
	if difficulty != "" {
		narrowings = append(narrowings, models.QuestionFilter{Category: category, Difficulty: difficulty})
	}
	if category != "" {
		narrowings = append(narrowings, models.QuestionFilter{Category: category})
	}
	narrowings = append(narrowings, models.QuestionFilter{})
	return d.draw(ctx, game, narrowings)
}

func (d *QuestionDraw) draw(ctx context.Context, game *models.Game, narrowings []models.QuestionFilter) (*models.Question, error) {
	l := d.lock(game.ID)
	l.Lock()
	defer l.Unlock()

	fresh, err := d.games.FindByID(ctx, game.ID)
	if err != nil {
		return nil, err
	}

	if fresh.TargetReached() {
		d.metrics.Drawn("target")
		logger.Info("Question target reached", "room_code", game.RoomCode, "served", fresh.ServedCount())
		return nil, errors.New(errors.ErrCodeExhausted, "question target reached")
	}

	for _, narrow := range narrowings {
		filter := PoolFilter(fresh)
		filter.ExcludeIDs = fresh.UsedQuestionIDs
		filter.Category = narrow.Category
		filter.Difficulty = narrow.Difficulty

		pool, err := d.questions.FindCandidates(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			continue
		}

		question := pool[d.pick(len(pool))]

		updated, err := d.games.AppendUsedQuestion(ctx, fresh.ID, question.ID, d.now().UTC())
		if err != nil {
			return nil, err
		}

		game.UsedQuestionIDs = updated.UsedQuestionIDs
		game.CurrentQuestionID = updated.CurrentQuestionID
		game.QuestionServedAt = updated.QuestionServedAt
		d.metrics.Drawn("served")
		logger.Info("Question drawn",
			"room_code", game.RoomCode,
			"question_id", question.ID,
			"served", len(game.UsedQuestionIDs),
			"pool", len(pool))
		return &question, nil
	}

	d.metrics.Drawn("exhausted")
	logger.Info("Question pool exhausted", "room_code", game.RoomCode, "served", len(fresh.UsedQuestionIDs))
	return nil, errors.New(errors.ErrCodeExhausted, "no unseen questions left")
}
