package services

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"livequiz/models"
	"livequiz/pkg/errors"
)

func cloneGame(g *models.Game) *models.Game {
	c := *g
	c.UsedQuestionIDs = append([]uint(nil), g.UsedQuestionIDs...)
	c.Words = append([]string(nil), g.Words...)
	if g.CurrentQuestionID != nil {
		id := *g.CurrentQuestionID
		c.CurrentQuestionID = &id
	}
	if g.QuestionServedAt != nil {
		at := *g.QuestionServedAt
		c.QuestionServedAt = &at
	}
	return &c
}

func cloneParticipant(p *models.Participant) *models.Participant {
	c := *p
	c.FoundWords = append([]string(nil), p.FoundWords...)
	return &c
}

type fakeGames struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.Game
	taken  map[string]bool
}

func newFakeGames() *fakeGames {
	return &fakeGames{byID: make(map[uint]*models.Game), taken: make(map[string]bool)}
}

func (f *fakeGames) Create(ctx context.Context, game *models.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.taken[game.RoomCode] {
		return errors.New(errors.ErrCodeConflict, "room code already taken")
	}
	f.nextID++
	game.ID = f.nextID
	game.CreatedAt = time.Now()
	f.byID[game.ID] = cloneGame(game)
	f.taken[game.RoomCode] = true
	return nil
}

func (f *fakeGames) CodeExists(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.taken[code], nil
}

func (f *fakeGames) FindByCode(ctx context.Context, code string) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, g := range f.byID {
		if g.RoomCode == code {
			return cloneGame(g), nil
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound, "room not found")
}

func (f *fakeGames) FindByID(ctx context.Context, id uint) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "room not found")
	}
	return cloneGame(g), nil
}

func (f *fakeGames) ListActive(ctx context.Context) ([]models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var games []models.Game
	for _, g := range f.byID {
		if g.Status.Active() {
			games = append(games, *cloneGame(g))
		}
	}
	sort.Slice(games, func(i, j int) bool { return games[i].ID > games[j].ID })
	return games, nil
}

func (f *fakeGames) UpdateStatus(ctx context.Context, id uint, from, to models.GameStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.byID[id]
	if !ok || g.Status != from {
		return errors.New(errors.ErrCodeInvalidTransition, "room is no longer "+string(from))
	}
	g.Status = to
	switch to {
	case models.StatusInProgress:
		g.StartedAt = &at
	case models.StatusFinished:
		g.FinishedAt = &at
	}
	return nil
}

func (f *fakeGames) AppendUsedQuestion(ctx context.Context, id, questionID uint, at time.Time) (*models.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.byID[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "room not found")
	}
	if g.Status != models.StatusInProgress {
		return nil, errors.New(errors.ErrCodeInvalidTransition, "room is not in progress")
	}
	if g.HasServed(questionID) {
		return nil, errors.New(errors.ErrCodeConflict, "question already served")
	}
	g.UsedQuestionIDs = append(g.UsedQuestionIDs, questionID)
	current := questionID
	g.CurrentQuestionID = &current
	g.QuestionServedAt = &at
	return cloneGame(g), nil
}

func (f *fakeGames) CloseQuestion(ctx context.Context, id, questionID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.byID[id]; ok && g.CurrentQuestionID != nil && *g.CurrentQuestionID == questionID {
		g.CurrentQuestionID = nil
	}
	return nil
}

func (f *fakeGames) ClearCurrentQuestion(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.byID[id]; ok {
		g.CurrentQuestionID = nil
	}
	return nil
}

// put stores a game as-is, for tests that need a specific state.
func (f *fakeGames) put(g *models.Game) *models.Game {
	f.mu.Lock()
	defer f.mu.Unlock()

	if g.ID == 0 {
		f.nextID++
		g.ID = f.nextID
	}
	f.byID[g.ID] = cloneGame(g)
	f.taken[g.RoomCode] = true
	return g
}

type fakeParticipants struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.Participant
}

func newFakeParticipants() *fakeParticipants {
	return &fakeParticipants{byID: make(map[uint]*models.Participant)}
}

func matchesIdentity(p *models.Participant, identity models.Identity) bool {
	if identity.IsGuest() {
		return p.GuestToken != nil && *p.GuestToken == identity.Token
	}
	return p.UserID != nil && *p.UserID == identity.UserID
}

func (f *fakeParticipants) Create(ctx context.Context, participant *models.Participant) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	identity := participant.Identity()
	for _, p := range f.byID {
		if p.GameID == participant.GameID && matchesIdentity(p, identity) {
			return errors.New(errors.ErrCodeConflict, "already joined this room")
		}
	}
	f.nextID++
	participant.ID = f.nextID
	f.byID[participant.ID] = cloneParticipant(participant)
	return nil
}

func (f *fakeParticipants) FindByIdentity(ctx context.Context, gameID uint, identity models.Identity) (*models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.byID {
		if p.GameID == gameID && matchesIdentity(p, identity) {
			return cloneParticipant(p), nil
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound, "participant not found")
}

func (f *fakeParticipants) FindInGame(ctx context.Context, gameID, participantID uint) (*models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.byID[participantID]
	if !ok || p.GameID != gameID {
		return nil, errors.New(errors.ErrCodeNotFound, "participant not found")
	}
	return cloneParticipant(p), nil
}

func (f *fakeParticipants) ListByGame(ctx context.Context, gameID uint) ([]models.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Participant
	for _, p := range f.byID {
		if p.GameID == gameID {
			out = append(out, *cloneParticipant(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeParticipants) CountByGame(ctx context.Context, gameID uint) (int, error) {
	list, _ := f.ListByGame(ctx, gameID)
	return len(list), nil
}

func (f *fakeParticipants) CountByGames(ctx context.Context, gameIDs []uint) (map[uint]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[uint]int)
	for _, p := range f.byID {
		if slices.Contains(gameIDs, p.GameID) {
			counts[p.GameID]++
		}
	}
	return counts, nil
}

func (f *fakeParticipants) AddWord(ctx context.Context, participantID uint, word string, award func(p *models.Participant) int) (*models.Participant, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.byID[participantID]
	if !ok {
		return nil, 0, errors.New(errors.ErrCodeNotFound, "participant not found")
	}
	if p.HasFound(word) {
		return nil, 0, errors.New(errors.ErrCodeConflict, "word already found")
	}
	p.FoundWords = append(p.FoundWords, word)
	points := award(p)
	p.Score += points
	return cloneParticipant(p), points, nil
}

func (f *fakeParticipants) get(id uint) *models.Participant {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneParticipant(f.byID[id])
}

type answerKey struct {
	participantID uint
	questionID    uint
}

type fakeAnswers struct {
	participants *fakeParticipants
	nextID       uint
	answers      map[answerKey]*models.Answer
}

func newFakeAnswers(participants *fakeParticipants) *fakeAnswers {
	return &fakeAnswers{participants: participants, answers: make(map[answerKey]*models.Answer)}
}

func (f *fakeAnswers) Record(ctx context.Context, participantID, questionID uint, score func(p *models.Participant) *models.Answer) (*models.Answer, *models.Participant, error) {
	f.participants.mu.Lock()
	defer f.participants.mu.Unlock()

	p, ok := f.participants.byID[participantID]
	if !ok {
		return nil, nil, errors.New(errors.ErrCodeNotFound, "participant not found")
	}
	key := answerKey{participantID, questionID}
	if _, ok := f.answers[key]; ok {
		return nil, nil, errors.New(errors.ErrCodeConflict, "answer already submitted")
	}

	answer := score(p)
	f.nextID++
	answer.ID = f.nextID
	answer.ParticipantID = participantID
	answer.QuestionID = questionID
	f.answers[key] = answer

	p.Score += answer.Points
	p.TotalAnswers++
	if answer.IsCorrect {
		p.CorrectAnswers++
	}
	return answer, cloneParticipant(p), nil
}

type fakeQuestions struct {
	questions []models.Question
}

func (f *fakeQuestions) matches(q models.Question, filter models.QuestionFilter) bool {
	if filter.EventID != nil && (q.EventID == nil || *q.EventID != *filter.EventID) {
		return false
	}
	if filter.Mode != "" && q.GameMode != nil && *q.GameMode != filter.Mode {
		return false
	}
	if slices.Contains(filter.ExcludeIDs, q.ID) {
		return false
	}
	if filter.Category != "" && q.Category != filter.Category {
		return false
	}
	if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
		return false
	}
	return true
}

func (f *fakeQuestions) FindByID(ctx context.Context, id uint) (*models.Question, error) {
	for _, q := range f.questions {
		if q.ID == id {
			found := q
			return &found, nil
		}
	}
	return nil, errors.New(errors.ErrCodeNotFound, "question not found")
}

func (f *fakeQuestions) FindCandidates(ctx context.Context, filter models.QuestionFilter) ([]models.Question, error) {
	var out []models.Question
	for _, q := range f.questions {
		if f.matches(q, filter) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuestions) Count(ctx context.Context, filter models.QuestionFilter) (int, error) {
	out, _ := f.FindCandidates(ctx, filter)
	return len(out), nil
}

func (f *fakeQuestions) Categories(ctx context.Context, filter models.QuestionFilter) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, q := range f.questions {
		if f.matches(q, filter) && !seen[q.Category] {
			seen[q.Category] = true
			out = append(out, q.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

type fakeDirectory struct {
	events map[uint]bool
	users  map[uint]*models.User
}

func (f *fakeDirectory) EventExists(ctx context.Context, id uint) (bool, error) {
	return f.events[id], nil
}

func (f *fakeDirectory) FindUser(ctx context.Context, id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "user not found")
	}
	return u, nil
}

type fakeSnapshots struct {
	mu sync.Mutex
	m  map[string]RoomSnapshot
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{m: make(map[string]RoomSnapshot)}
}

func (f *fakeSnapshots) Save(ctx context.Context, snapshot *RoomSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[snapshot.RoomCode] = *snapshot
	return nil
}

func (f *fakeSnapshots) Load(ctx context.Context, code string) (*RoomSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.m[code]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSnapshots) Delete(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.m, code)
	return nil
}

func questionSet(n int, category string, difficulty models.Difficulty) []models.Question {
	out := make([]models.Question, n)
	for i := range out {
		out[i] = models.Question{
			ID:            uint(i + 1),
			Category:      category,
			Difficulty:    difficulty,
			Points:        100,
			Text:          "Question",
			Options:       []string{"A", "B", "C", "D"},
			CorrectOption: 1,
			TimeLimit:     30,
		}
	}
	return out
}
