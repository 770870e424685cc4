package services

import (
	"context"
	"time"

	"livequiz/models"
	"livequiz/pkg/errors"
	"livequiz/pkg/logger"
	"livequiz/puzzle"
)

// playing loads an in-progress room of the given mode and one of its
// participants.
func (s *GameService) playing(ctx context.Context, code string, mode models.GameMode, participantID uint) (*models.Game, *models.Participant, error) {
	game, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if game.Mode != mode {
		return nil, nil, errors.New(errors.ErrCodeValidationFailed, "room is not a "+string(mode)+" room")
	}
	if game.Status != models.StatusInProgress {
		return nil, nil, errors.New(errors.ErrCodeInvalidTransition, "room is not in progress")
	}

	participant, err := s.participants.FindInGame(ctx, game.ID, participantID)
	if err != nil {
		return nil, nil, err
	}
	return game, participant, nil
}

// Board-select

func (s *GameService) ensureCells(ctx context.Context, game *models.Game, session *RoomSession) error {
	if session.HasCells() {
		return nil
	}

	categories, err := s.questions.Categories(ctx, PoolFilter(game))
	if err != nil {
		return err
	}
	if len(categories) == 0 {
		return errors.New(errors.ErrCodeExhausted, "no questions available for this event and mode")
	}
	if len(categories) > s.cfg.BoardColumns {
		categories = categories[:s.cfg.BoardColumns]
	}

	session.EnsureCells(categories, s.cfg.BoardRows)
	return nil
}

func (s *GameService) boardSession(ctx context.Context, game *models.Game) (*RoomSession, error) {
	session, _ := s.sessions.GetOrCreate(game.RoomCode, s.sessionBuilder(game))
	if err := s.ensureCells(ctx, game, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *GameService) GetBoard(ctx context.Context, code string) (*BoardView, error) {
	game, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if game.Mode != models.ModeBoardSelect {
		return nil, errors.New(errors.ErrCodeValidationFailed, "room is not a board-select room")
	}
	if game.Status == models.StatusFinished {
		return nil, errors.New(errors.ErrCodeInvalidTransition, "room has finished")
	}

	session, err := s.boardSession(ctx, game)
	if err != nil {
		return nil, err
	}

	categories, cells := session.Cells()
	return &BoardView{Categories: categories, Rows: s.cfg.BoardRows, Cells: cells}, nil
}

// ReserveCell claims a board cell for a participant and draws its question,
// preferring the cell's category and difficulty. The first claimant wins a
// contested cell; the loser gets a conflict.
func (s *GameService) ReserveCell(ctx context.Context, code string, req *ReserveCellRequest) (*DrawResult, error) {
	if req.Row == nil {
		return nil, errors.New(errors.ErrCodeValidationFailed, "row is required")
	}

	game, participant, err := s.playing(ctx, code, models.ModeBoardSelect, req.ParticipantID)
	if err != nil {
		return nil, err
	}

	session, err := s.boardSession(ctx, game)
	if err != nil {
		return nil, err
	}

	cell, err := session.ReserveCell(req.Category, *req.Row, participant.ID)
	if err != nil {
		return nil, err
	}

	question, err := s.draw.DrawPreferred(ctx, game, cell.Category, cell.Difficulty)
	if err != nil {
		session.ReleaseCell(cell.Category, cell.Row)
		if errors.Is(err, errors.ErrCodeExhausted) {
			return s.finishDraw(ctx, game)
		}
		return nil, err
	}

	session.BindCell(cell.Category, cell.Row, question.ID)
	cell.QuestionID = question.ID

	s.hub.Broadcast(game.RoomCode, EventCellReserved, CellReservedPayload{
		Category:      cell.Category,
		Row:           cell.Row,
		Value:         cell.Value,
		ParticipantID: participant.ID,
		DisplayName:   participant.Label(),
	})

	return s.sendDrawn(ctx, game, participant, question, &cell), nil
}

// SelectQuestion draws the participant's next question without a board cell,
// optionally preferring a category.
func (s *GameService) SelectQuestion(ctx context.Context, code string, req *SelectQuestionRequest) (*DrawResult, error) {
	game, participant, err := s.playing(ctx, code, models.ModeBoardSelect, req.ParticipantID)
	if err != nil {
		return nil, err
	}

	question, err := s.draw.DrawPreferred(ctx, game, req.Category, "")
	if errors.Is(err, errors.ErrCodeExhausted) {
		return s.finishDraw(ctx, game)
	}
	if err != nil {
		return nil, err
	}

	session, _ := s.sessions.GetOrCreate(game.RoomCode, s.sessionBuilder(game))
	session.RecordDraw(question.ID, participant.ID)

	return s.sendDrawn(ctx, game, participant, question, nil), nil
}

// drawnSession checks that a board-select question is answered by the
// participant who drew it. Draws made before the session was lost cannot be
// answered.
func (s *GameService) drawnSession(game *models.Game, participantID, questionID uint) (*RoomSession, error) {
	session, ok := s.sessions.Get(game.RoomCode)
	if !ok {
		return nil, errors.New(errors.ErrCodeConflict, "question is closed")
	}
	drawer, ok := session.DrawnBy(questionID)
	if !ok {
		return nil, errors.New(errors.ErrCodeConflict, "question is closed")
	}
	if drawer != participantID {
		return nil, errors.New(errors.ErrCodeConflict, "question was drawn by another participant")
	}
	return session, nil
}

func (s *GameService) sendDrawn(ctx context.Context, game *models.Game, participant *models.Participant, question *models.Question, cell *Cell) *DrawResult {
	public := question.Public()
	s.hub.SendTo(game.RoomCode, participant.ID, EventQuestionChanged, QuestionChangedPayload{
		Question:       public,
		QuestionNumber: game.ServedCount(),
		TotalQuestions: game.TargetCount,
		TimeLimit:      question.TimeLimit,
	})
	s.refreshSnapshot(ctx, game)

	return &DrawResult{Cell: cell, Question: public}
}

func (s *GameService) finishDraw(ctx context.Context, game *models.Game) (*DrawResult, error) {
	leaderboard, err := s.finishGame(ctx, game, "questions-exhausted")
	if errors.Is(err, errors.ErrCodeInvalidTransition) {
		return nil, errors.New(errors.ErrCodeInvalidTransition, "room has finished")
	}
	if err != nil {
		return nil, err
	}
	return &DrawResult{Finished: true, Leaderboard: leaderboard}, nil
}

// Word-search

// wordSearchSession returns the room's session and makes sure an in-progress
// room has its clock running, resuming it from StartedAt when the hub lost it.
func (s *GameService) wordSearchSession(game *models.Game) *RoomSession {
	session, _ := s.sessions.GetOrCreate(game.RoomCode, s.sessionBuilder(game))

	if game.Status == models.StatusInProgress && game.StartedAt != nil {
		if _, running := s.hub.CountdownRemaining(game.RoomCode, labelWordSearch); !running {
			remaining := game.TimeLimit - int(s.now().Sub(*game.StartedAt)/time.Second)
			if remaining < 0 {
				remaining = 0
			}
			logger.Info("Resuming word-search clock", "room_code", game.RoomCode, "remaining", remaining)
			s.hub.StartCountdown(game.RoomCode, labelWordSearch, remaining, s.onWordSearchExpired(game.RoomCode))
		}
	}
	return session
}

// boardStart is when a participant's own clock started: the room start, or
// their join time if they arrived late.
func boardStart(game *models.Game, participant *models.Participant) time.Time {
	start := participant.JoinedAt
	if game.StartedAt != nil && game.StartedAt.After(start) {
		start = *game.StartedAt
	}
	return start
}

func (s *GameService) secondsRemaining(game *models.Game) int {
	if remaining, ok := s.hub.CountdownRemaining(game.RoomCode, labelWordSearch); ok {
		return remaining
	}
	if game.StartedAt == nil {
		return game.TimeLimit
	}
	left := game.TimeLimit - int(s.now().Sub(*game.StartedAt)/time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// GetPlayerGrid returns the participant's letter grid and found words. The
// answer key never leaves the server.
func (s *GameService) GetPlayerGrid(ctx context.Context, code string, participantID uint) (*GridView, error) {
	game, participant, err := s.playing(ctx, code, models.ModeWordSearch, participantID)
	if err != nil {
		return nil, err
	}

	session := s.wordSearchSession(game)
	board := session.Board(participant.ID, participant.FoundWords, boardStart(game, participant), s.now())

	return &GridView{
		Size:             board.Grid.Size,
		Cells:            board.Grid.Cells,
		Words:            board.Words,
		Found:            board.Found,
		TimeLimit:        game.TimeLimit,
		SecondsRemaining: s.secondsRemaining(game),
		Complete:         board.Complete,
	}, nil
}

// SubmitWord checks a found word against the participant's grid and scores
// it. Invalid and repeated words are reported in the result, not as errors.
func (s *GameService) SubmitWord(ctx context.Context, code string, req *SubmitWordRequest) (*WordSubmission, error) {
	game, participant, err := s.playing(ctx, code, models.ModeWordSearch, req.ParticipantID)
	if err != nil {
		return nil, err
	}

	session := s.wordSearchSession(game)
	result, word, board := session.ClaimWord(participant.ID, participant.FoundWords, boardStart(game, participant), s.now(), req.Word)

	submission := &WordSubmission{
		Result:     result,
		Word:       word,
		FoundCount: len(board.Found),
		TotalWords: len(board.Words),
		Score:      participant.Score,
	}
	if result != puzzle.WordValid {
		return submission, nil
	}

	updated, score, err := s.scoring.AwardWord(ctx, participant.ID, word, board.Words, game.TimeLimit, board.Elapsed)
	if errors.Is(err, errors.ErrCodeConflict) {
		submission.Result = puzzle.WordAlreadyFound
		return submission, nil
	}
	if err != nil {
		session.ReleaseWord(participant.ID, word)
		return nil, err
	}

	submission.Points = score.Points + score.CompletionBonus
	submission.CompletionBonus = score.CompletionBonus
	submission.Completed = score.Completed
	submission.Score = updated.Score

	s.hub.Broadcast(game.RoomCode, EventWordFound, WordFoundPayload{
		ParticipantID: participant.ID,
		DisplayName:   participant.Label(),
		Word:          word,
		FoundCount:    submission.FoundCount,
		TotalWords:    submission.TotalWords,
		Points:        submission.Points,
	})
	s.broadcastLeaderboard(ctx, game)

	if score.Completed {
		s.finishIfAllComplete(ctx, game, session)
	}
	return submission, nil
}

func (s *GameService) finishIfAllComplete(ctx context.Context, game *models.Game, session *RoomSession) {
	participants, err := s.participants.ListByGame(ctx, game.ID)
	if err != nil {
		logger.Warn("Failed to list participants", "room_code", game.RoomCode, "error", err)
		return
	}

	ids := make([]uint, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	if !session.AllComplete(ids) {
		return
	}

	if _, err := s.finishGame(ctx, game, "all-words-found"); err != nil && !errors.Is(err, errors.ErrCodeInvalidTransition) {
		logger.Error("Failed to finish word-search room", "room_code", game.RoomCode, "error", err)
	}
}
