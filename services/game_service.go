package services

import (
	"context"
	"strings"
	"time"

	"livequiz/metrics"
	"livequiz/models"
	"livequiz/pkg/errors"
	"livequiz/pkg/logger"
	"livequiz/puzzle"

	"github.com/google/uuid"
)

const (
	MinGridSize        = 5
	MaxGridSize        = 30
	maxRoomNameLength  = 64
	hostDisplayName    = "Host"
	backgroundDeadline = 10 * time.Second
)

type GameConfig struct {
	RoomCodeAttempts      int
	DefaultGridSize       int
	DefaultWordSearchTime int
	DefaultTotalQuestions int
	BoardColumns          int
	BoardRows             int
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		RoomCodeAttempts:      DefaultRoomCodeAttempts,
		DefaultGridSize:       15,
		DefaultWordSearchTime: 300,
		DefaultTotalQuestions: 10,
		BoardColumns:          6,
		BoardRows:             5,
	}
}

type GameServiceDeps struct {
	Games        GameStore
	Participants ParticipantStore
	Answers      AnswerStore
	Questions    QuestionStore
	Directory    DirectoryStore
	Snapshots    SnapshotStore
	Hub          *Hub
	Sessions     *SessionRegistry
	Generator    *puzzle.Generator
	Metrics      *metrics.Metrics
	Config       GameConfig
}

// GameService runs rooms end to end: it mutates persisted and session state
// through the engines and tells the hub what to broadcast.
type GameService struct {
	games        GameStore
	participants ParticipantStore
	questions    QuestionStore
	directory    DirectoryStore
	snapshots    SnapshotStore
	hub          *Hub
	sessions     *SessionRegistry
	generator    *puzzle.Generator

	registry    *RoomRegistry
	draw        *QuestionDraw
	scoring     *ScoringEngine
	leaderboard *Leaderboard

	cfg GameConfig
	now func() time.Time
}

func NewGameService(deps GameServiceDeps) *GameService {
	cfg := deps.Config
	defaults := DefaultGameConfig()
	if cfg.RoomCodeAttempts <= 0 {
		cfg.RoomCodeAttempts = defaults.RoomCodeAttempts
	}
	if cfg.DefaultGridSize <= 0 {
		cfg.DefaultGridSize = defaults.DefaultGridSize
	}
	if cfg.DefaultWordSearchTime <= 0 {
		cfg.DefaultWordSearchTime = defaults.DefaultWordSearchTime
	}
	if cfg.DefaultTotalQuestions <= 0 {
		cfg.DefaultTotalQuestions = defaults.DefaultTotalQuestions
	}
	if cfg.BoardColumns <= 0 {
		cfg.BoardColumns = defaults.BoardColumns
	}
	if cfg.BoardRows <= 0 {
		cfg.BoardRows = defaults.BoardRows
	}

	sessions := deps.Sessions
	if sessions == nil {
		sessions = NewSessionRegistry()
	}

	return &GameService{
		games:        deps.Games,
		participants: deps.Participants,
		questions:    deps.Questions,
		directory:    deps.Directory,
		snapshots:    deps.Snapshots,
		hub:          deps.Hub,
		sessions:     sessions,
		generator:    deps.Generator,
		registry:     NewRoomRegistry(deps.Games, cfg.RoomCodeAttempts, deps.Metrics),
		draw:         NewQuestionDraw(deps.Questions, deps.Games, deps.Metrics),
		scoring:      NewScoringEngine(deps.Answers, deps.Participants, deps.Metrics),
		leaderboard:  NewLeaderboard(deps.Participants),
		cfg:          cfg,
		now:          time.Now,
	}
}

type CreateRoomRequest struct {
	Name           string          `json:"name" binding:"required"`
	Mode           models.GameMode `json:"mode" binding:"required"`
	EventID        *uint           `json:"event_id"`
	TotalQuestions int             `json:"total_questions"`
	Words          []string        `json:"words"`
	GridSize       int             `json:"grid_size"`
	TimeLimit      int             `json:"time_limit"`
	SharedGrid     *bool           `json:"shared_grid"`
}

type CreateRoomResult struct {
	Game               *models.Game `json:"game"`
	RequestedQuestions int          `json:"requested_questions,omitempty"`
	AvailableQuestions int          `json:"available_questions,omitempty"`
}

type JoinRequest struct {
	UserID     *uint  `json:"user_id"`
	Name       string `json:"name"`
	GuestToken string `json:"guest_token"`
	TeamID     *uint  `json:"team_id"`
}

type JoinResult struct {
	Participant      *models.Participant `json:"participant"`
	GuestToken       string              `json:"guest_token,omitempty"`
	Rejoined         bool                `json:"rejoined"`
	ParticipantCount int                 `json:"participant_count"`
}

type SubmitAnswerRequest struct {
	ParticipantID  uint `json:"participant_id" binding:"required"`
	QuestionID     uint `json:"question_id" binding:"required"`
	SelectedOption *int `json:"selected_option" binding:"required"`
	TimeRemaining  int  `json:"time_remaining"`
}

type AnswerResult struct {
	QuestionID    uint `json:"question_id"`
	IsCorrect     bool `json:"is_correct"`
	Points        int  `json:"points"`
	TimeBonus     int  `json:"time_bonus"`
	StreakBonus   int  `json:"streak_bonus"`
	CorrectOption int  `json:"correct_option"`
	Score         int  `json:"score"`
	Streak        int  `json:"streak"`
}

type NextResult struct {
	Finished       bool                   `json:"finished"`
	Question       *models.PublicQuestion `json:"question,omitempty"`
	QuestionNumber int                    `json:"question_number,omitempty"`
	TotalQuestions int                    `json:"total_questions,omitempty"`
	Leaderboard    []LeaderboardEntry     `json:"leaderboard,omitempty"`
}

type FinishResult struct {
	Game        *models.Game       `json:"game"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type ReserveCellRequest struct {
	ParticipantID uint   `json:"participant_id" binding:"required"`
	Category      string `json:"category" binding:"required"`
	Row           *int   `json:"row" binding:"required"`
}

type SelectQuestionRequest struct {
	ParticipantID uint   `json:"participant_id" binding:"required"`
	Category      string `json:"category"`
}

type DrawResult struct {
	Finished    bool                   `json:"finished"`
	Cell        *Cell                  `json:"cell,omitempty"`
	Question    *models.PublicQuestion `json:"question,omitempty"`
	Leaderboard []LeaderboardEntry     `json:"leaderboard,omitempty"`
}

type BoardView struct {
	Categories []string `json:"categories"`
	Rows       int      `json:"rows"`
	Cells      []Cell   `json:"cells"`
}

type GridView struct {
	Size             int        `json:"size"`
	Cells            [][]string `json:"cells"`
	Words            []string   `json:"words"`
	Found            []string   `json:"found"`
	TimeLimit        int        `json:"time_limit"`
	SecondsRemaining int        `json:"seconds_remaining"`
	Complete         bool       `json:"complete"`
}

type SubmitWordRequest struct {
	ParticipantID uint   `json:"participant_id" binding:"required"`
	Word          string `json:"word" binding:"required"`
}

type WordSubmission struct {
	Result          puzzle.WordResult `json:"result"`
	Word            string            `json:"word"`
	Points          int               `json:"points"`
	CompletionBonus int               `json:"completion_bonus"`
	Completed       bool              `json:"completed"`
	FoundCount      int               `json:"found_count"`
	TotalWords      int               `json:"total_words"`
	Score           int               `json:"score"`
}

type RoomSummary struct {
	RoomCode         string            `json:"room_code"`
	Name             string            `json:"name"`
	Mode             models.GameMode   `json:"mode"`
	Status           models.GameStatus `json:"status"`
	ParticipantCount int               `json:"participant_count"`
	QuestionsServed  int               `json:"questions_served"`
	TargetCount      int               `json:"target_count"`
	CreatedAt        time.Time         `json:"created_at"`
}

type ParticipantSummary struct {
	ID             uint   `json:"id"`
	DisplayName    string `json:"display_name"`
	Score          int    `json:"score"`
	CorrectAnswers int    `json:"correct_answers"`
	Connected      bool   `json:"connected"`
}

type RoomDetail struct {
	Game         *models.Game         `json:"game"`
	Participants []ParticipantSummary `json:"participants"`
	Subscribers  int                  `json:"subscribers"`
}

// CreateRoom validates the room settings and allocates a code.
func (s *GameService) CreateRoom(ctx context.Context, req *CreateRoomRequest) (*CreateRoomResult, error) {
	if !req.Mode.Valid() {
		return nil, errors.New(errors.ErrCodeValidationFailed, "mode must be one of turn-based, board-select, word-search")
	}

	name := SanitizeText(req.Name, maxRoomNameLength)
	if name == "" {
		return nil, errors.New(errors.ErrCodeValidationFailed, "name is required")
	}

	if req.EventID != nil {
		exists, err := s.directory.EventExists(ctx, *req.EventID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, errors.New(errors.ErrCodeNotFound, "event not found")
		}
	}

	game := &models.Game{
		Name:    name,
		Mode:    req.Mode,
		EventID: req.EventID,
	}
	result := &CreateRoomResult{}

	if req.Mode.UsesQuestions() {
		requested := req.TotalQuestions
		if requested == 0 {
			requested = s.cfg.DefaultTotalQuestions
		}
		if requested < 0 {
			return nil, errors.New(errors.ErrCodeValidationFailed, "total_questions must be positive")
		}

		available, err := s.questions.Count(ctx, PoolFilter(game))
		if err != nil {
			return nil, err
		}
		if available == 0 {
			return nil, errors.New(errors.ErrCodeExhausted, "no questions available for this event and mode")
		}

		game.TargetCount = min(requested, available)
		result.RequestedQuestions = requested
		result.AvailableQuestions = available
	} else {
		words := puzzle.NormalizeWords(req.Words)
		if len(words) == 0 {
			return nil, errors.New(errors.ErrCodeValidationFailed, "words are required for word-search rooms")
		}

		size := req.GridSize
		if size == 0 {
			size = s.cfg.DefaultGridSize
		}
		if size < MinGridSize || size > MaxGridSize {
			return nil, errors.New(errors.ErrCodeValidationFailed, "grid_size must be between 5 and 30")
		}

		limit := req.TimeLimit
		if limit == 0 {
			limit = s.cfg.DefaultWordSearchTime
		}
		if limit < 0 {
			return nil, errors.New(errors.ErrCodeValidationFailed, "time_limit must be positive")
		}

		shared := true
		if req.SharedGrid != nil {
			shared = *req.SharedGrid
		}

		game.Words = words
		game.GridSize = size
		game.TimeLimit = limit
		game.SharedGrid = shared
		game.TargetCount = len(words)
	}

	created, err := s.registry.CreateRoom(ctx, game)
	if err != nil {
		return nil, err
	}
	result.Game = created

	s.refreshSnapshot(ctx, created)
	return result, nil
}

func (s *GameService) GetRoom(ctx context.Context, code string) (*RoomDetail, error) {
	game, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	participants, err := s.participants.ListByGame(ctx, game.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ParticipantSummary, len(participants))
	for i, p := range participants {
		summaries[i] = ParticipantSummary{
			ID:             p.ID,
			DisplayName:    p.Label(),
			Score:          p.Score,
			CorrectAnswers: p.CorrectAnswers,
			Connected:      s.hub.IsConnected(game.RoomCode, p.ID),
		}
	}

	return &RoomDetail{
		Game:         game,
		Participants: summaries,
		Subscribers:  s.hub.SubscriberCount(game.RoomCode),
	}, nil
}

func (s *GameService) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	games, err := s.registry.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	counts, err := s.participants.CountByGames(ctx, ids)
	if err != nil {
		return nil, err
	}

	rooms := make([]RoomSummary, len(games))
	for i, g := range games {
		rooms[i] = RoomSummary{
			RoomCode:         g.RoomCode,
			Name:             g.Name,
			Mode:             g.Mode,
			Status:           g.Status,
			ParticipantCount: counts[g.ID],
			QuestionsServed:  g.ServedCount(),
			TargetCount:      g.TargetCount,
			CreatedAt:        g.CreatedAt,
		}
	}
	return rooms, nil
}

// Join adds a registered user or a guest to the room. A guest presenting a
// token it already joined with gets its existing participant back.
func (s *GameService) Join(ctx context.Context, code string, req *JoinRequest) (*JoinResult, error) {
	game, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if !game.Status.Active() {
		return nil, errors.New(errors.ErrCodeConflict, "room has finished")
	}

	var identity models.Identity
	if req.UserID != nil {
		user, err := s.directory.FindUser(ctx, *req.UserID)
		if err != nil {
			return nil, err
		}
		identity = models.Registered(user.ID)
		identity.DisplayName = user.Name

		_, err = s.participants.FindByIdentity(ctx, game.ID, identity)
		if err == nil {
			return nil, errors.New(errors.ErrCodeConflict, "already joined this room")
		}
		if !errors.Is(err, errors.ErrCodeNotFound) {
			return nil, err
		}
	} else {
		name := SanitizeText(req.Name, MaxDisplayNameLength)
		token := strings.TrimSpace(req.GuestToken)

		if token != "" {
			existing, err := s.participants.FindByIdentity(ctx, game.ID, models.Guest(name, token))
			if err == nil {
				return s.rejoin(ctx, game, existing)
			}
			if !errors.Is(err, errors.ErrCodeNotFound) {
				return nil, err
			}
		}

		if name == "" {
			return nil, errors.New(errors.ErrCodeValidationFailed, "display name is required")
		}
		if token == "" {
			token = uuid.NewString()
		}
		identity = models.Guest(name, token)
	}

	participant := &models.Participant{
		GameID:      game.ID,
		DisplayName: identity.DisplayName,
		TeamID:      req.TeamID,
		JoinedAt:    s.now().UTC(),
	}
	if identity.IsGuest() {
		token := identity.Token
		participant.GuestToken = &token
	} else {
		userID := identity.UserID
		participant.UserID = &userID
	}

	if err := s.participants.Create(ctx, participant); err != nil {
		if identity.IsGuest() && errors.Is(err, errors.ErrCodeConflict) {
			if existing, findErr := s.participants.FindByIdentity(ctx, game.ID, identity); findErr == nil {
				return s.rejoin(ctx, game, existing)
			}
		}
		return nil, err
	}

	count, err := s.participants.CountByGame(ctx, game.ID)
	if err != nil {
		logger.Warn("Failed to count participants", "room_code", game.RoomCode, "error", err)
	}

	logger.Info("Participant joined",
		"room_code", game.RoomCode,
		"participant_id", participant.ID,
		"identity", identity.Kind)

	s.hub.Broadcast(game.RoomCode, EventParticipantJoined, ParticipantJoinedPayload{
		ParticipantID:    participant.ID,
		DisplayName:      participant.Label(),
		ParticipantCount: count,
	})
	s.refreshSnapshot(ctx, game)

	return &JoinResult{
		Participant:      participant,
		GuestToken:       identity.Token,
		ParticipantCount: count,
	}, nil
}

func (s *GameService) rejoin(ctx context.Context, game *models.Game, participant *models.Participant) (*JoinResult, error) {
	count, err := s.participants.CountByGame(ctx, game.ID)
	if err != nil {
		logger.Warn("Failed to count participants", "room_code", game.RoomCode, "error", err)
	}

	logger.Info("Participant rejoined", "room_code", game.RoomCode, "participant_id", participant.ID)

	return &JoinResult{
		Participant:      participant,
		GuestToken:       participant.Identity().Token,
		Rejoined:         true,
		ParticipantCount: count,
	}, nil
}

// Start moves the room to in-progress and kicks off the mode: the first
// question for turn-based, the board for board-select, the clock for
// word-search.
func (s *GameService) Start(ctx context.Context, code string) (*models.Game, error) {
	game, err := s.registry.Transition(ctx, code, models.StatusInProgress)
	if err != nil {
		return nil, err
	}

	s.hub.Broadcast(game.RoomCode, EventGameStarted, GameStartedPayload{
		StartedAt: *game.StartedAt,
		Mode:      game.Mode,
	})

	switch game.Mode {
	case models.ModeTurnBased:
		if _, err := s.serveNext(ctx, game); err != nil {
			return nil, err
		}
		return game, nil

	case models.ModeBoardSelect:
		session, _ := s.sessions.GetOrCreate(game.RoomCode, s.sessionBuilder(game))
		if err := s.ensureCells(ctx, game, session); err != nil {
			return nil, err
		}

	case models.ModeWordSearch:
		s.sessions.GetOrCreate(game.RoomCode, s.sessionBuilder(game))
		s.hub.StartCountdown(game.RoomCode, labelWordSearch, game.TimeLimit, s.onWordSearchExpired(game.RoomCode))
	}

	s.refreshSnapshot(ctx, game)
	return game, nil
}

// Next advances a turn-based room. Running out of questions, by target or by
// pool, finishes the room instead of failing.
func (s *GameService) Next(ctx context.Context, code string) (*NextResult, error) {
	game, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if game.Mode != models.ModeTurnBased {
		return nil, errors.New(errors.ErrCodeValidationFailed, "only turn-based rooms are advanced by the host")
	}
	if game.Status != models.StatusInProgress {
		return nil, errors.New(errors.ErrCodeInvalidTransition, "room is not in progress")
	}

	return s.serveNext(ctx, game)
}

func (s *GameService) serveNext(ctx context.Context, game *models.Game) (*NextResult, error) {
	question, err := s.draw.DrawNext(ctx, game)
	if errors.Is(err, errors.ErrCodeExhausted) {
		leaderboard, err := s.finishGame(ctx, game, "questions-exhausted")
		if err != nil {
			return nil, err
		}
		return &NextResult{Finished: true, Leaderboard: leaderboard}, nil
	}
	if err != nil {
		return nil, err
	}

	public := question.Public()
	s.hub.Broadcast(game.RoomCode, EventQuestionChanged, QuestionChangedPayload{
		Question:       public,
		QuestionNumber: game.ServedCount(),
		TotalQuestions: game.TargetCount,
		TimeLimit:      question.TimeLimit,
	})

	if question.TimeLimit > 0 {
		s.hub.StartCountdown(game.RoomCode, questionLabel(question.ID), question.TimeLimit, s.onQuestionExpired(game.RoomCode, question.ID))
	} else {
		s.hub.StopCountdown(game.RoomCode)
	}

	s.refreshSnapshot(ctx, game)

	return &NextResult{
		Question:       public,
		QuestionNumber: game.ServedCount(),
		TotalQuestions: game.TargetCount,
	}, nil
}

// onQuestionExpired concludes the round: the question stops taking answers
// and the room sees the standings.
func (s *GameService) onQuestionExpired(code string, questionID uint) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundDeadline)
		defer cancel()

		game, err := s.games.FindByCode(ctx, code)
		if err != nil {
			logger.Error("Failed to load room after question timer", "room_code", code, "error", err)
			return
		}
		if err := s.games.CloseQuestion(ctx, game.ID, questionID); err != nil {
			logger.Error("Failed to close question", "room_code", code, "question_id", questionID, "error", err)
		} else if game.CurrentQuestionID != nil && *game.CurrentQuestionID == questionID {
			game.CurrentQuestionID = nil
		}
		s.broadcastLeaderboard(ctx, game)
		s.refreshSnapshot(ctx, game)
	}
}

func (s *GameService) onWordSearchExpired(code string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundDeadline)
		defer cancel()

		game, err := s.games.FindByCode(ctx, code)
		if err != nil {
			logger.Error("Failed to load room after word-search timer", "room_code", code, "error", err)
			return
		}
		if game.Status != models.StatusInProgress {
			return
		}
		if _, err := s.finishGame(ctx, game, "time-up"); err != nil && !errors.Is(err, errors.ErrCodeInvalidTransition) {
			logger.Error("Failed to finish word-search room", "room_code", code, "error", err)
		}
	}
}

func (s *GameService) Finish(ctx context.Context, code string) (*FinishResult, error) {
	game, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	leaderboard, err := s.finishGame(ctx, game, "host-ended")
	if err != nil {
		return nil, err
	}
	return &FinishResult{Game: game, Leaderboard: leaderboard}, nil
}

// finishGame ends an in-progress room and tears down its live state.
func (s *GameService) finishGame(ctx context.Context, game *models.Game, reason string) ([]LeaderboardEntry, error) {
	if err := s.registry.Advance(ctx, game, models.StatusFinished); err != nil {
		return nil, err
	}

	s.hub.StopCountdown(game.RoomCode)

	if game.CurrentQuestionID != nil {
		if err := s.games.ClearCurrentQuestion(ctx, game.ID); err != nil {
			logger.Warn("Failed to clear current question", "room_code", game.RoomCode, "error", err)
		}
		game.CurrentQuestionID = nil
	}

	if session, ok := s.sessions.Get(game.RoomCode); ok {
		session.StopClocks(*game.FinishedAt)
	}

	leaderboard, err := s.leaderboard.Rank(ctx, game)
	if err != nil {
		logger.Error("Failed to rank final leaderboard", "room_code", game.RoomCode, "error", err)
	}

	s.hub.Broadcast(game.RoomCode, EventGameEnded, GameEndedPayload{
		Reason:      reason,
		FinishedAt:  *game.FinishedAt,
		Leaderboard: leaderboard,
	})

	s.sessions.Drop(game.RoomCode)
	s.draw.Forget(game.ID)
	s.refreshSnapshot(ctx, game)

	logger.Info("Room finished", "room_code", game.RoomCode, "reason", reason)
	return leaderboard, nil
}

// SubmitAnswer scores an answer to a question already served in the room.
// Turn-based rooms only take answers for the current question while its time
// lasts, measured by the server; board-select questions are answered by the
// participant who drew them.
func (s *GameService) SubmitAnswer(ctx context.Context, code string, req *SubmitAnswerRequest) (*AnswerResult, error) {
	game, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	if !game.Mode.UsesQuestions() {
		return nil, errors.New(errors.ErrCodeValidationFailed, "this room does not take answers")
	}
	if game.Status != models.StatusInProgress {
		return nil, errors.New(errors.ErrCodeInvalidTransition, "room is not in progress")
	}
	if req.SelectedOption == nil {
		return nil, errors.New(errors.ErrCodeValidationFailed, "selected_option is required")
	}

	participant, err := s.participants.FindInGame(ctx, game.ID, req.ParticipantID)
	if err != nil {
		return nil, err
	}

	if !game.HasServed(req.QuestionID) {
		return nil, errors.New(errors.ErrCodeValidationFailed, "question has not been served in this room")
	}

	question, err := s.questions.FindByID(ctx, req.QuestionID)
	if err != nil {
		return nil, err
	}

	selected := *req.SelectedOption
	if selected < 0 || selected >= len(question.Options) {
		return nil, errors.New(errors.ErrCodeValidationFailed, "selected_option is out of range")
	}

	remaining := req.TimeRemaining
	var board *RoomSession
	switch game.Mode {
	case models.ModeTurnBased:
		if game.CurrentQuestionID == nil || *game.CurrentQuestionID != question.ID {
			return nil, errors.New(errors.ErrCodeConflict, "question is closed")
		}
		if question.TimeLimit > 0 {
			left, running := s.hub.CountdownRemaining(game.RoomCode, questionLabel(question.ID))
			if !running {
				left = s.questionTimeLeft(game, question)
			}
			if left <= 0 {
				return nil, errors.New(errors.ErrCodeConflict, "question is closed")
			}
			remaining = left
		}
	case models.ModeBoardSelect:
		board, err = s.drawnSession(game, participant.ID, question.ID)
		if err != nil {
			return nil, err
		}
	}

	_, updated, score, err := s.scoring.SubmitAnswer(ctx, participant.ID, question, selected, remaining)
	if err != nil {
		return nil, err
	}

	result := &AnswerResult{
		QuestionID:    question.ID,
		IsCorrect:     score.IsCorrect,
		Points:        score.Points,
		TimeBonus:     score.TimeBonus,
		StreakBonus:   score.StreakBonus,
		CorrectOption: question.CorrectOption,
		Score:         updated.Score,
		Streak:        updated.Streak,
	}

	s.hub.Broadcast(game.RoomCode, EventAnswerSubmitted, AnswerSubmittedPayload{
		ParticipantID: participant.ID,
		QuestionID:    question.ID,
	})
	s.hub.SendTo(game.RoomCode, participant.ID, EventAnswerResult, AnswerResultPayload{
		QuestionID:    question.ID,
		IsCorrect:     result.IsCorrect,
		Points:        result.Points,
		CorrectOption: result.CorrectOption,
		Score:         result.Score,
		Streak:        result.Streak,
	})
	s.broadcastLeaderboard(ctx, game)

	if board != nil {
		board.MarkAnswered(question.ID)
		if board.BoardComplete() {
			if _, err := s.finishGame(ctx, game, "board-complete"); err != nil && !errors.Is(err, errors.ErrCodeInvalidTransition) {
				logger.Error("Failed to finish completed board", "room_code", game.RoomCode, "error", err)
			}
		}
	}

	return result, nil
}

// questionTimeLeft measures the current question's time from when it was
// served, for when the room's countdown is gone (the last socket left, or the
// process restarted).
func (s *GameService) questionTimeLeft(game *models.Game, question *models.Question) int {
	if game.QuestionServedAt == nil {
		return 0
	}
	elapsed := int(s.now().Sub(*game.QuestionServedAt) / time.Second)
	return question.TimeLimit - elapsed
}

func (s *GameService) Leaderboard(ctx context.Context, code string) ([]LeaderboardEntry, error) {
	game, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.leaderboard.Rank(ctx, game)
}

func (s *GameService) broadcastLeaderboard(ctx context.Context, game *models.Game) {
	leaderboard, err := s.leaderboard.Rank(ctx, game)
	if err != nil {
		logger.Error("Failed to rank leaderboard", "room_code", game.RoomCode, "error", err)
		return
	}
	s.hub.Broadcast(game.RoomCode, EventLeaderboardUpdated, LeaderboardPayload{Leaderboard: leaderboard})
}

func (s *GameService) sessionBuilder(game *models.Game) func() *RoomSession {
	return func() *RoomSession {
		logger.Debug("Building room session", "room_code", game.RoomCode, "mode", game.Mode)
		return NewRoomSession(game, s.generator)
	}
}

// GetRoomState serves the cached snapshot when there is one and rebuilds it
// from the database otherwise. Live values come from the hub either way.
func (s *GameService) GetRoomState(ctx context.Context, code string) (*RoomSnapshot, error) {
	normalized := NormalizeRoomCode(code)
	if !ValidRoomCode(normalized) {
		return nil, errors.New(errors.ErrCodeValidationFailed, "room code must be 6 letters or digits")
	}

	var snapshot *RoomSnapshot
	if s.snapshots != nil {
		cached, err := s.snapshots.Load(ctx, normalized)
		if err != nil {
			logger.Warn("Failed to read room snapshot", "room_code", normalized, "error", err)
		}
		snapshot = cached
	}

	if snapshot == nil {
		game, err := s.registry.Lookup(ctx, normalized)
		if err != nil {
			return nil, err
		}
		snapshot = s.buildSnapshot(ctx, game)
		s.saveSnapshot(ctx, snapshot)
	}

	s.overlayLive(snapshot)
	return snapshot, nil
}

// RoomState satisfies RoomHooks.
func (s *GameService) RoomState(ctx context.Context, code string) (*RoomSnapshot, error) {
	return s.GetRoomState(ctx, code)
}

// RoomEmpty satisfies RoomHooks: the last socket left, so the room's cached
// state goes with it. The hub has already cancelled the countdown. A
// board-select session is kept because it holds the only record of who
// reserved which cell and drew which question.
func (s *GameService) RoomEmpty(code string) {
	if session, ok := s.sessions.Get(code); !ok || !session.HasBoardState() {
		s.sessions.Drop(code)
	}

	if s.snapshots != nil {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundDeadline)
		defer cancel()
		if err := s.snapshots.Delete(ctx, code); err != nil {
			logger.Warn("Failed to drop room snapshot", "room_code", code, "error", err)
		}
	}
	logger.Info("Room channel emptied", "room_code", code)
}

func (s *GameService) buildSnapshot(ctx context.Context, game *models.Game) *RoomSnapshot {
	snapshot := &RoomSnapshot{
		RoomCode:        game.RoomCode,
		Name:            game.Name,
		Mode:            game.Mode,
		Status:          game.Status,
		QuestionsServed: game.ServedCount(),
		TargetCount:     game.TargetCount,
		StartedAt:       game.StartedAt,
		FinishedAt:      game.FinishedAt,
		UpdatedAt:       s.now().UTC(),
	}

	count, err := s.participants.CountByGame(ctx, game.ID)
	if err != nil {
		logger.Warn("Failed to count participants", "room_code", game.RoomCode, "error", err)
	}
	snapshot.ParticipantCount = count

	if game.Mode == models.ModeTurnBased && game.Status == models.StatusInProgress && game.CurrentQuestionID != nil {
		question, err := s.questions.FindByID(ctx, *game.CurrentQuestionID)
		if err != nil {
			logger.Warn("Failed to load current question", "room_code", game.RoomCode, "error", err)
		} else {
			snapshot.CurrentQuestion = question.Public()
		}
	}

	return snapshot
}

func (s *GameService) overlayLive(snapshot *RoomSnapshot) {
	snapshot.Subscribers = s.hub.SubscriberCount(snapshot.RoomCode)
	snapshot.TimerLabel = ""
	snapshot.SecondsRemaining = nil
	if label, remaining, ok := s.hub.ActiveCountdown(snapshot.RoomCode); ok {
		snapshot.TimerLabel = label
		snapshot.SecondsRemaining = &remaining
	}
}

func (s *GameService) refreshSnapshot(ctx context.Context, game *models.Game) {
	if s.snapshots == nil {
		return
	}
	s.saveSnapshot(ctx, s.buildSnapshot(ctx, game))
}

func (s *GameService) saveSnapshot(ctx context.Context, snapshot *RoomSnapshot) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		logger.Warn("Failed to store room snapshot", "room_code", snapshot.RoomCode, "error", err)
	}
}

// Subscriber checks that a socket may join the room channel. Participant 0 is
// the host screen.
func (s *GameService) Subscriber(ctx context.Context, code string, participantID uint) (*models.Game, string, error) {
	game, err := s.registry.Lookup(ctx, code)
	if err != nil {
		return nil, "", err
	}

	name := hostDisplayName
	if participantID != 0 {
		participant, err := s.participants.FindInGame(ctx, game.ID, participantID)
		if err != nil {
			return nil, "", err
		}
		name = participant.Label()
	}

	if game.Mode == models.ModeWordSearch && game.Status == models.StatusInProgress {
		s.wordSearchSession(game)
	}

	return game, name, nil
}
