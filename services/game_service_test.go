package services

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"livequiz/models"
	"livequiz/pkg/errors"
	"livequiz/puzzle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	svc          *GameService
	hub          *Hub
	games        *fakeGames
	participants *fakeParticipants
	snapshots    *fakeSnapshots
}

// newHarness wires a service over in-memory stores. A tick of an hour keeps
// countdowns frozen at their starting value.
func newHarness(t *testing.T, questions []models.Question, tick time.Duration) *harness {
	t.Helper()

	hub := NewHub(HubOptions{Tick: tick})
	games := newFakeGames()
	participants := newFakeParticipants()
	snapshots := newFakeSnapshots()

	svc := NewGameService(GameServiceDeps{
		Games:        games,
		Participants: participants,
		Answers:      newFakeAnswers(participants),
		Questions:    &fakeQuestions{questions: questions},
		Directory: &fakeDirectory{
			events: map[uint]bool{1: true},
			users:  map[uint]*models.User{10: {ID: 10, Name: "Grace"}},
		},
		Snapshots: snapshots,
		Hub:       hub,
		Generator: puzzle.NewGenerator(rand.New(rand.NewPCG(5, 11))),
	})
	hub.SetHooks(svc)

	return &harness{svc: svc, hub: hub, games: games, participants: participants, snapshots: snapshots}
}

func (h *harness) create(t *testing.T, req *CreateRoomRequest) *models.Game {
	t.Helper()
	result, err := h.svc.CreateRoom(context.Background(), req)
	require.NoError(t, err)
	return result.Game
}

func (h *harness) join(t *testing.T, code, name string) *models.Participant {
	t.Helper()
	result, err := h.svc.Join(context.Background(), code, &JoinRequest{Name: name})
	require.NoError(t, err)
	return result.Participant
}

func (h *harness) stored(t *testing.T, code string) *models.Game {
	t.Helper()
	game, err := h.games.FindByCode(context.Background(), code)
	require.NoError(t, err)
	return game
}

func option(i int) *int {
	return &i
}

func TestCreateRoomCapsTargetToPool(t *testing.T) {
	h := newHarness(t, questionSet(3, "General", models.DifficultyEasy), time.Hour)

	result, err := h.svc.CreateRoom(context.Background(), &CreateRoomRequest{
		Name:           "Friday <b>quiz</b>",
		Mode:           models.ModeTurnBased,
		TotalQuestions: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, "Friday quiz", result.Game.Name)
	assert.Equal(t, 3, result.Game.TargetCount)
	assert.Equal(t, 10, result.RequestedQuestions)
	assert.Equal(t, 3, result.AvailableQuestions)
	assert.Equal(t, models.StatusWaiting, result.Game.Status)
	assert.True(t, ValidRoomCode(result.Game.RoomCode))

	snapshot, err := h.snapshots.Load(context.Background(), result.Game.RoomCode)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, models.StatusWaiting, snapshot.Status)
}

func TestCreateRoomValidation(t *testing.T) {
	unknownEvent := uint(99)
	tests := []struct {
		name     string
		req      CreateRoomRequest
		code     string
		question bool
	}{
		{"bad mode", CreateRoomRequest{Name: "x", Mode: "trivia"}, errors.ErrCodeValidationFailed, true},
		{"blank name", CreateRoomRequest{Name: " <p></p> ", Mode: models.ModeTurnBased}, errors.ErrCodeValidationFailed, true},
		{"unknown event", CreateRoomRequest{Name: "x", Mode: models.ModeTurnBased, EventID: &unknownEvent}, errors.ErrCodeNotFound, true},
		{"empty pool", CreateRoomRequest{Name: "x", Mode: models.ModeBoardSelect}, errors.ErrCodeExhausted, false},
		{"no words", CreateRoomRequest{Name: "x", Mode: models.ModeWordSearch}, errors.ErrCodeValidationFailed, true},
		{"grid too small", CreateRoomRequest{Name: "x", Mode: models.ModeWordSearch, Words: []string{"cat"}, GridSize: 4}, errors.ErrCodeValidationFailed, true},
		{"grid too large", CreateRoomRequest{Name: "x", Mode: models.ModeWordSearch, Words: []string{"cat"}, GridSize: 31}, errors.ErrCodeValidationFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var questions []models.Question
			if tt.question {
				questions = questionSet(2, "General", models.DifficultyEasy)
			}
			h := newHarness(t, questions, time.Hour)

			_, err := h.svc.CreateRoom(context.Background(), &tt.req)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestCreateWordSearchRoomDefaults(t *testing.T) {
	h := newHarness(t, nil, time.Hour)

	game := h.create(t, &CreateRoomRequest{Name: "Words", Mode: models.ModeWordSearch, Words: []string{"cat", "Dog", "cat"}})

	assert.Equal(t, []string{"CAT", "DOG"}, game.Words)
	assert.Equal(t, 15, game.GridSize)
	assert.Equal(t, 300, game.TimeLimit)
	assert.True(t, game.SharedGrid)
	assert.Equal(t, 2, game.TargetCount)
}

func TestGuestRejoinKeepsParticipant(t *testing.T) {
	h := newHarness(t, questionSet(3, "General", models.DifficultyEasy), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased})

	joined, err := h.svc.Join(ctx, game.RoomCode, &JoinRequest{Name: "Ada"})
	require.NoError(t, err)
	require.NotEmpty(t, joined.GuestToken)
	assert.False(t, joined.Rejoined)

	_, err = h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)
	current := h.stored(t, game.RoomCode).CurrentQuestionID
	require.NotNil(t, current)

	_, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{
		ParticipantID:  joined.Participant.ID,
		QuestionID:     *current,
		SelectedOption: option(1),
	})
	require.NoError(t, err)

	again, err := h.svc.Join(ctx, game.RoomCode, &JoinRequest{Name: "Ada", GuestToken: joined.GuestToken})
	require.NoError(t, err)

	assert.True(t, again.Rejoined)
	assert.Equal(t, joined.Participant.ID, again.Participant.ID)
	assert.Equal(t, 150, again.Participant.Score)
	assert.Equal(t, 1, again.ParticipantCount)
}

func TestJoinRegisteredUserOnce(t *testing.T) {
	h := newHarness(t, questionSet(1, "General", models.DifficultyEasy), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased})
	userID := uint(10)

	joined, err := h.svc.Join(ctx, game.RoomCode, &JoinRequest{UserID: &userID})
	require.NoError(t, err)
	assert.Equal(t, "Grace", joined.Participant.DisplayName)
	assert.Empty(t, joined.GuestToken)

	_, err = h.svc.Join(ctx, game.RoomCode, &JoinRequest{UserID: &userID})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))

	missing := uint(11)
	_, err = h.svc.Join(ctx, game.RoomCode, &JoinRequest{UserID: &missing})
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestJoinRejections(t *testing.T) {
	h := newHarness(t, questionSet(1, "General", models.DifficultyEasy), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased})

	_, err := h.svc.Join(ctx, game.RoomCode, &JoinRequest{Name: "  "})
	assert.True(t, errors.Is(err, errors.ErrCodeValidationFailed))

	_, err = h.svc.Join(ctx, "ZZZZZZ", &JoinRequest{Name: "Ada"})
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	h.join(t, game.RoomCode, "Ada")
	_, err = h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)
	_, err = h.svc.Finish(ctx, game.RoomCode)
	require.NoError(t, err)

	_, err = h.svc.Join(ctx, game.RoomCode, &JoinRequest{Name: "Bob"})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))
}

func TestTurnBasedFlow(t *testing.T) {
	h := newHarness(t, questionSet(5, "General", models.DifficultyEasy), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased, TotalQuestions: 2})
	ada := h.join(t, game.RoomCode, "Ada")
	bob := h.join(t, game.RoomCode, "Bob")

	_, err := h.svc.Next(ctx, game.RoomCode)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition), "not started yet")

	started, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, started.Status)

	_, err = h.svc.Start(ctx, game.RoomCode)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	first := *h.stored(t, game.RoomCode).CurrentQuestionID
	remaining, ok := h.hub.CountdownRemaining(game.RoomCode, questionLabel(first))
	require.True(t, ok)
	assert.Equal(t, 30, remaining)

	result, err := h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{
		ParticipantID:  ada.ID,
		QuestionID:     first,
		SelectedOption: option(1),
		TimeRemaining:  5,
	})
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
	assert.Equal(t, 150, result.Points, "server clock wins over the client's")

	_, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: first, SelectedOption: option(1)})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))

	wrong, err := h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: bob.ID, QuestionID: first, SelectedOption: option(0)})
	require.NoError(t, err)
	assert.False(t, wrong.IsCorrect)
	assert.Equal(t, 1, wrong.CorrectOption)

	second, err := h.svc.Next(ctx, game.RoomCode)
	require.NoError(t, err)
	require.False(t, second.Finished)
	assert.Equal(t, 2, second.QuestionNumber)
	assert.NotEqual(t, first, second.Question.ID)

	_, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: bob.ID, QuestionID: first, SelectedOption: option(1)})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict), "previous question is closed")

	done, err := h.svc.Next(ctx, game.RoomCode)
	require.NoError(t, err)
	assert.True(t, done.Finished)
	require.Len(t, done.Leaderboard, 2)
	assert.Equal(t, ada.ID, done.Leaderboard[0].ParticipantID)
	assert.Equal(t, 150, done.Leaderboard[0].Score)

	stored := h.stored(t, game.RoomCode)
	assert.Equal(t, models.StatusFinished, stored.Status)
	assert.Nil(t, stored.CurrentQuestionID)
	_, _, running := h.hub.ActiveCountdown(game.RoomCode)
	assert.False(t, running)
}

func TestTurnBasedQuestionClosesWhenTimeRunsOut(t *testing.T) {
	h := newHarness(t, questionSet(3, "General", models.DifficultyEasy), 5*time.Millisecond)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased})
	ada := h.join(t, game.RoomCode, "Ada")

	_, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)
	current := *h.stored(t, game.RoomCode).CurrentQuestionID

	assert.Eventually(t, func() bool {
		stored, err := h.games.FindByCode(ctx, game.RoomCode)
		return err == nil && stored.CurrentQuestionID == nil
	}, 2*time.Second, 5*time.Millisecond)

	_, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: current, SelectedOption: option(1)})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))
	assert.Zero(t, h.participants.get(ada.ID).Score)
}

func TestTurnBasedAnswerWithoutCountdownUsesServedTime(t *testing.T) {
	h := newHarness(t, questionSet(3, "General", models.DifficultyEasy), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased})
	ada := h.join(t, game.RoomCode, "Ada")
	bob := h.join(t, game.RoomCode, "Bob")

	_, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)
	current := *h.stored(t, game.RoomCode).CurrentQuestionID

	// Same as the last socket leaving mid-question.
	h.hub.StopCountdown(game.RoomCode)

	result, err := h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: current, SelectedOption: option(1)})
	require.NoError(t, err)
	assert.InDelta(t, 150, result.Points, 2)

	stored := h.stored(t, game.RoomCode)
	served := time.Now().UTC().Add(-31 * time.Second)
	stored.QuestionServedAt = &served
	h.games.put(stored)

	_, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: bob.ID, QuestionID: current, SelectedOption: option(1)})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))
}

func TestSubmitAnswerValidation(t *testing.T) {
	h := newHarness(t, questionSet(3, "General", models.DifficultyEasy), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased})
	ada := h.join(t, game.RoomCode, "Ada")

	_, err := h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: 1, SelectedOption: option(1)})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	_, err = h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)
	current := *h.stored(t, game.RoomCode).CurrentQuestionID

	var unserved uint = 1
	for unserved == current {
		unserved++
	}

	tests := []struct {
		name string
		req  SubmitAnswerRequest
		code string
	}{
		{"unserved question", SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: unserved, SelectedOption: option(1)}, errors.ErrCodeValidationFailed},
		{"option out of range", SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: current, SelectedOption: option(4)}, errors.ErrCodeValidationFailed},
		{"negative option", SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: current, SelectedOption: option(-1)}, errors.ErrCodeValidationFailed},
		{"missing option", SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: current}, errors.ErrCodeValidationFailed},
		{"stranger", SubmitAnswerRequest{ParticipantID: 77, QuestionID: current, SelectedOption: option(1)}, errors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.SubmitAnswer(ctx, game.RoomCode, &tt.req)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func boardQuestions() []models.Question {
	var questions []models.Question
	id := uint(1)
	for _, category := range []string{"History", "Science"} {
		for _, difficulty := range []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard} {
			questions = append(questions, models.Question{
				ID:            id,
				Category:      category,
				Difficulty:    difficulty,
				Points:        100,
				Options:       []string{"A", "B"},
				CorrectOption: 0,
				TimeLimit:     30,
			})
			id++
		}
	}
	return questions
}

func TestBoardSelectReserveCell(t *testing.T) {
	h := newHarness(t, boardQuestions(), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Board", Mode: models.ModeBoardSelect})
	ada := h.join(t, game.RoomCode, "Ada")
	bob := h.join(t, game.RoomCode, "Bob")

	_, err := h.svc.ReserveCell(ctx, game.RoomCode, &ReserveCellRequest{ParticipantID: ada.ID, Category: "History", Row: option(0)})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))

	_, err = h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)

	board, err := h.svc.GetBoard(ctx, game.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, []string{"History", "Science"}, board.Categories)
	assert.Len(t, board.Cells, 10)

	drawn, err := h.svc.ReserveCell(ctx, game.RoomCode, &ReserveCellRequest{ParticipantID: ada.ID, Category: "Science", Row: option(4)})
	require.NoError(t, err)
	require.NotNil(t, drawn.Question)
	assert.Equal(t, "Science", drawn.Question.Category)
	assert.Equal(t, models.DifficultyHard, drawn.Question.Difficulty)
	assert.Equal(t, 500, drawn.Cell.Value)

	_, err = h.svc.ReserveCell(ctx, game.RoomCode, &ReserveCellRequest{ParticipantID: bob.ID, Category: "Science", Row: option(4)})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))

	result, err := h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{
		ParticipantID:  ada.ID,
		QuestionID:     drawn.Question.ID,
		SelectedOption: option(0),
		TimeRemaining:  15,
	})
	require.NoError(t, err)
	assert.Equal(t, 125, result.Points)

	board, err = h.svc.GetBoard(ctx, game.RoomCode)
	require.NoError(t, err)
	for _, cell := range board.Cells {
		assert.Equal(t, cell.Category == "Science" && cell.Row == 4, cell.Reserved)
	}
}

func TestBoardSelectAnswersBelongToTheDrawer(t *testing.T) {
	h := newHarness(t, boardQuestions(), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Board", Mode: models.ModeBoardSelect})
	ada := h.join(t, game.RoomCode, "Ada")
	bob := h.join(t, game.RoomCode, "Bob")
	_, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)

	adas, err := h.svc.ReserveCell(ctx, game.RoomCode, &ReserveCellRequest{ParticipantID: ada.ID, Category: "Science", Row: option(4)})
	require.NoError(t, err)
	_, err = h.svc.ReserveCell(ctx, game.RoomCode, &ReserveCellRequest{ParticipantID: bob.ID, Category: "Science", Row: option(4)})
	require.True(t, errors.Is(err, errors.ErrCodeConflict))

	_, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{
		ParticipantID:  bob.ID,
		QuestionID:     adas.Question.ID,
		SelectedOption: option(0),
		TimeRemaining:  30,
	})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict), "bob lost the cell")
	assert.Zero(t, h.participants.get(bob.ID).Score)

	bobs, err := h.svc.SelectQuestion(ctx, game.RoomCode, &SelectQuestionRequest{ParticipantID: bob.ID, Category: "History"})
	require.NoError(t, err)
	_, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: bobs.Question.ID, SelectedOption: option(0)})
	assert.True(t, errors.Is(err, errors.ErrCodeConflict))

	// The last socket leaving keeps the board's draws.
	h.svc.RoomEmpty(game.RoomCode)

	result, err := h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: adas.Question.ID, SelectedOption: option(0), TimeRemaining: 30})
	require.NoError(t, err)
	assert.Equal(t, 150, result.Points)

	result, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: bob.ID, QuestionID: bobs.Question.ID, SelectedOption: option(0)})
	require.NoError(t, err)
	assert.True(t, result.IsCorrect)
}

func TestBoardSelectFinishesWhenBoardIsPlayed(t *testing.T) {
	h := newHarness(t, boardQuestions(), time.Hour)
	h.svc.cfg.BoardRows = 1
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Board", Mode: models.ModeBoardSelect})
	ada := h.join(t, game.RoomCode, "Ada")
	bob := h.join(t, game.RoomCode, "Bob")
	_, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)

	history, err := h.svc.ReserveCell(ctx, game.RoomCode, &ReserveCellRequest{ParticipantID: ada.ID, Category: "History", Row: option(0)})
	require.NoError(t, err)
	science, err := h.svc.ReserveCell(ctx, game.RoomCode, &ReserveCellRequest{ParticipantID: bob.ID, Category: "Science", Row: option(0)})
	require.NoError(t, err)

	_, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: ada.ID, QuestionID: history.Question.ID, SelectedOption: option(0)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, h.stored(t, game.RoomCode).Status)

	_, err = h.svc.SubmitAnswer(ctx, game.RoomCode, &SubmitAnswerRequest{ParticipantID: bob.ID, QuestionID: science.Question.ID, SelectedOption: option(1)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, h.stored(t, game.RoomCode).Status)
}

func TestBoardSelectFinishesWhenTargetReached(t *testing.T) {
	h := newHarness(t, boardQuestions(), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Board", Mode: models.ModeBoardSelect, TotalQuestions: 1})
	ada := h.join(t, game.RoomCode, "Ada")
	_, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)

	_, err = h.svc.SelectQuestion(ctx, game.RoomCode, &SelectQuestionRequest{ParticipantID: ada.ID, Category: "History"})
	require.NoError(t, err)

	drawn, err := h.svc.ReserveCell(ctx, game.RoomCode, &ReserveCellRequest{ParticipantID: ada.ID, Category: "History", Row: option(0)})
	require.NoError(t, err)
	assert.True(t, drawn.Finished)
	assert.Len(t, drawn.Leaderboard, 1)
	assert.Equal(t, models.StatusFinished, h.stored(t, game.RoomCode).Status)

	_, err = h.svc.GetBoard(ctx, game.RoomCode)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestWordSearchFlow(t *testing.T) {
	h := newHarness(t, nil, time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Words", Mode: models.ModeWordSearch, Words: []string{"cat", "dog"}, GridSize: 10})
	ada := h.join(t, game.RoomCode, "Ada")
	bob := h.join(t, game.RoomCode, "Bob")

	_, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)

	grid, err := h.svc.GetPlayerGrid(ctx, game.RoomCode, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, grid.Size)
	assert.Len(t, grid.Cells, 10)
	assert.Equal(t, []string{"CAT", "DOG"}, grid.Words)
	assert.Empty(t, grid.Found)
	assert.Equal(t, 300, grid.SecondsRemaining)

	found, err := h.svc.SubmitWord(ctx, game.RoomCode, &SubmitWordRequest{ParticipantID: ada.ID, Word: "cat"})
	require.NoError(t, err)
	assert.Equal(t, puzzle.WordValid, found.Result)
	assert.Equal(t, 100, found.Points)
	assert.Equal(t, 100, found.Score)
	assert.Equal(t, 1, found.FoundCount)
	assert.Equal(t, 2, found.TotalWords)

	repeat, err := h.svc.SubmitWord(ctx, game.RoomCode, &SubmitWordRequest{ParticipantID: ada.ID, Word: "CAT"})
	require.NoError(t, err)
	assert.Equal(t, puzzle.WordAlreadyFound, repeat.Result)
	assert.Zero(t, repeat.Points)

	invalid, err := h.svc.SubmitWord(ctx, game.RoomCode, &SubmitWordRequest{ParticipantID: ada.ID, Word: "fish"})
	require.NoError(t, err)
	assert.Equal(t, puzzle.WordInvalid, invalid.Result)

	last, err := h.svc.SubmitWord(ctx, game.RoomCode, &SubmitWordRequest{ParticipantID: ada.ID, Word: "dog"})
	require.NoError(t, err)
	assert.True(t, last.Completed)
	assert.InDelta(t, 600, last.CompletionBonus, 4)
	assert.Equal(t, 100+last.CompletionBonus, last.Points)
	assert.Equal(t, models.StatusInProgress, h.stored(t, game.RoomCode).Status, "bob is still searching")

	for _, w := range []string{"dog", "cat"} {
		_, err := h.svc.SubmitWord(ctx, game.RoomCode, &SubmitWordRequest{ParticipantID: bob.ID, Word: w})
		require.NoError(t, err)
	}
	assert.Equal(t, models.StatusFinished, h.stored(t, game.RoomCode).Status)
	assert.Equal(t, []string{"CAT", "DOG"}, h.participants.get(ada.ID).FoundWords)

	_, err = h.svc.SubmitWord(ctx, game.RoomCode, &SubmitWordRequest{ParticipantID: bob.ID, Word: "cat"})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidTransition))
}

func TestWordSearchSessionRebuildKeepsFoundWords(t *testing.T) {
	h := newHarness(t, nil, time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Words", Mode: models.ModeWordSearch, Words: []string{"cat", "dog"}, GridSize: 10})
	ada := h.join(t, game.RoomCode, "Ada")
	_, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)

	_, err = h.svc.SubmitWord(ctx, game.RoomCode, &SubmitWordRequest{ParticipantID: ada.ID, Word: "cat"})
	require.NoError(t, err)

	// the last socket left, or the process restarted
	h.svc.RoomEmpty(game.RoomCode)

	grid, err := h.svc.GetPlayerGrid(ctx, game.RoomCode, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"CAT"}, grid.Found)

	repeat, err := h.svc.SubmitWord(ctx, game.RoomCode, &SubmitWordRequest{ParticipantID: ada.ID, Word: "cat"})
	require.NoError(t, err)
	assert.Equal(t, puzzle.WordAlreadyFound, repeat.Result)
}

func TestWordSearchEndsWhenTimeIsUp(t *testing.T) {
	h := newHarness(t, nil, 5*time.Millisecond)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Words", Mode: models.ModeWordSearch, Words: []string{"cat"}, TimeLimit: 2})
	h.join(t, game.RoomCode, "Ada")

	_, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stored, err := h.games.FindByCode(ctx, game.RoomCode)
		return err == nil && stored.Status == models.StatusFinished
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscriberResumesWordSearchClock(t *testing.T) {
	h := newHarness(t, nil, time.Hour)
	started := time.Now().Add(-100 * time.Second)
	game := h.games.put(&models.Game{
		RoomCode:   "CLOCK1",
		Name:       "Words",
		Mode:       models.ModeWordSearch,
		Status:     models.StatusInProgress,
		Words:      []string{"CAT"},
		GridSize:   8,
		TimeLimit:  300,
		SharedGrid: true,
		StartedAt:  &started,
	})

	_, name, err := h.svc.Subscriber(context.Background(), game.RoomCode, 0)
	require.NoError(t, err)
	assert.Equal(t, "Host", name)

	remaining, ok := h.hub.CountdownRemaining(game.RoomCode, labelWordSearch)
	require.True(t, ok)
	assert.InDelta(t, 200, remaining, 2)

	_, _, err = h.svc.Subscriber(context.Background(), game.RoomCode, 42)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestGetRoomStateOverlaysLiveTimer(t *testing.T) {
	h := newHarness(t, questionSet(3, "General", models.DifficultyEasy), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased})
	h.join(t, game.RoomCode, "Ada")
	_, err := h.svc.Start(ctx, game.RoomCode)
	require.NoError(t, err)

	state, err := h.svc.GetRoomState(ctx, game.RoomCode)
	require.NoError(t, err)

	current := *h.stored(t, game.RoomCode).CurrentQuestionID
	assert.Equal(t, models.StatusInProgress, state.Status)
	assert.Equal(t, 1, state.ParticipantCount)
	assert.Equal(t, 1, state.QuestionsServed)
	require.NotNil(t, state.CurrentQuestion)
	assert.Equal(t, current, state.CurrentQuestion.ID)
	assert.Equal(t, questionLabel(current), state.TimerLabel)
	require.NotNil(t, state.SecondsRemaining)
	assert.Equal(t, 30, *state.SecondsRemaining)

	// a cache miss rebuilds from the store
	require.NoError(t, h.snapshots.Delete(ctx, game.RoomCode))
	state, err = h.svc.GetRoomState(ctx, game.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, 1, state.QuestionsServed)

	_, err = h.svc.GetRoomState(ctx, "bad")
	assert.True(t, errors.Is(err, errors.ErrCodeValidationFailed))
}

func TestListRoomsAndGetRoom(t *testing.T) {
	h := newHarness(t, questionSet(3, "General", models.DifficultyEasy), time.Hour)
	ctx := context.Background()
	quiz := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased})
	words := h.create(t, &CreateRoomRequest{Name: "Words", Mode: models.ModeWordSearch, Words: []string{"cat"}})
	h.join(t, quiz.RoomCode, "Ada")
	h.join(t, quiz.RoomCode, "Bob")

	rooms, err := h.svc.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	counts := map[string]int{}
	for _, r := range rooms {
		counts[r.RoomCode] = r.ParticipantCount
	}
	assert.Equal(t, map[string]int{quiz.RoomCode: 2, words.RoomCode: 0}, counts)

	detail, err := h.svc.GetRoom(ctx, quiz.RoomCode)
	require.NoError(t, err)
	assert.Len(t, detail.Participants, 2)
	assert.False(t, detail.Participants[0].Connected)
	assert.Zero(t, detail.Subscribers)
}

func TestRoomEmptyDropsCachedState(t *testing.T) {
	h := newHarness(t, questionSet(3, "General", models.DifficultyEasy), time.Hour)
	ctx := context.Background()
	game := h.create(t, &CreateRoomRequest{Name: "Quiz", Mode: models.ModeTurnBased})

	cached, err := h.snapshots.Load(ctx, game.RoomCode)
	require.NoError(t, err)
	require.NotNil(t, cached)

	h.svc.RoomEmpty(game.RoomCode)

	cached, err = h.snapshots.Load(ctx, game.RoomCode)
	require.NoError(t, err)
	assert.Nil(t, cached)

	state, err := h.svc.GetRoomState(ctx, game.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, state.Status)

	cached, err = h.snapshots.Load(ctx, game.RoomCode)
	require.NoError(t, err)
	assert.NotNil(t, cached)
}
