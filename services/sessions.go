package services

import (
	"sort"
	"sync"
	"time"

	"livequiz/models"
	"livequiz/pkg/errors"
	"livequiz/puzzle"
)

// SessionRegistry holds the in-memory state of live rooms. It is a cache: a
// session can be dropped at any time and rebuilt from the persisted game.
type SessionRegistry struct {
	mu    sync.Mutex
	rooms map[string]*RoomSession
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{rooms: make(map[string]*RoomSession)}
}

func (r *SessionRegistry) Get(code string) (*RoomSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rooms[code]
	return s, ok
}

// GetOrCreate returns the room's session, building it with build when absent.
// created reports whether build ran.
func (r *SessionRegistry) GetOrCreate(code string, build func() *RoomSession) (session *RoomSession, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.rooms[code]; ok {
		return s, false
	}
	s := build()
	r.rooms[code] = s
	return s, true
}

func (r *SessionRegistry) Drop(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
}

// PlayerBoard is one participant's word-search state. Words is the set of
// words actually placed on Grid.
type PlayerBoard struct {
	Grid       *puzzle.Grid
	Words      []string
	Found      puzzle.WordSet
	StartedAt  time.Time
	FinishedAt *time.Time
}

func (b *PlayerBoard) Complete() bool {
	if len(b.Words) == 0 {
		return false
	}
	for _, w := range b.Words {
		if !b.Found.Has(w) {
			return false
		}
	}
	return true
}

func (b *PlayerBoard) Elapsed(now time.Time) int {
	end := now
	if b.FinishedAt != nil {
		end = *b.FinishedAt
	}
	elapsed := int(end.Sub(b.StartedAt) / time.Second)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// BoardSnapshot is a copy of a board safe to hand outside the session lock.
type BoardSnapshot struct {
	Grid      *puzzle.Grid
	Words     []string
	Found     []string
	StartedAt time.Time
	Elapsed   int
	Complete  bool
}

type Cell struct {
	Category   string            `json:"category"`
	Row        int               `json:"row"`
	Value      int               `json:"value"`
	Difficulty models.Difficulty `json:"difficulty"`
	Reserved   bool              `json:"reserved"`
	ReservedBy uint              `json:"reserved_by,omitempty"`
	QuestionID uint              `json:"-"`
}

type cellKey struct {
	category string
	row      int
}

// drawnQuestion is a board-select question and the participant who drew it.
type drawnQuestion struct {
	participantID uint
	answered      bool
}

// RowValue is the point label of a board row, 100 for the first row.
func RowValue(row int) int {
	return 100 * (row + 1)
}

func RowDifficulty(row int) models.Difficulty {
	switch {
	case row < 2:
		return models.DifficultyEasy
	case row < 4:
		return models.DifficultyMedium
	default:
		return models.DifficultyHard
	}
}

// RoomSession is the ephemeral state of one room: word-search grids and
// found sets, and the board-select cell map.
type RoomSession struct {
	Code string

	mu         sync.Mutex
	words      []string
	gridSize   int
	timeLimit  int
	sharedGrid bool
	generator  *puzzle.Generator
	shared     *puzzle.Grid
	boards     map[uint]*PlayerBoard

	categories []string
	rows       int
	cells      map[cellKey]*Cell
	drawn      map[uint]*drawnQuestion
}

func NewRoomSession(game *models.Game, generator *puzzle.Generator) *RoomSession {
	if generator == nil {
		generator = puzzle.NewGenerator(nil)
	}
	return &RoomSession{
		Code:       game.RoomCode,
		words:      puzzle.NormalizeWords(game.Words),
		gridSize:   game.GridSize,
		timeLimit:  game.TimeLimit,
		sharedGrid: game.SharedGrid,
		generator:  generator,
		boards:     make(map[uint]*PlayerBoard),
		cells:      make(map[cellKey]*Cell),
		drawn:      make(map[uint]*drawnQuestion),
	}
}

func (s *RoomSession) TimeLimit() int {
	return s.timeLimit
}

// board expects s.mu to be held.
func (s *RoomSession) board(participantID uint, seed []string, startedAt time.Time) *PlayerBoard {
	if b, ok := s.boards[participantID]; ok {
		return b
	}

	var grid *puzzle.Grid
	if s.sharedGrid {
		if s.shared == nil {
			s.shared = s.generator.Generate(s.words, s.gridSize)
		}
		grid = s.shared.Clone()
	} else {
		grid = s.generator.Generate(s.words, s.gridSize)
	}

	b := &PlayerBoard{
		Grid:      grid,
		Words:     grid.Words(),
		Found:     puzzle.NewWordSet(seed...),
		StartedAt: startedAt,
	}
	if b.Complete() {
		at := startedAt
		b.FinishedAt = &at
	}
	s.boards[participantID] = b
	return b
}

// Board returns a snapshot of the participant's board, creating it on first
// use. seed is the participant's persisted found words.
func (s *RoomSession) Board(participantID uint, seed []string, startedAt, now time.Time) BoardSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.board(participantID, seed, startedAt)
	words := append([]string(nil), b.Words...)
	sort.Strings(words)
	return BoardSnapshot{
		Grid:      b.Grid.Clone(),
		Words:     words,
		Found:     b.Found.Sorted(),
		StartedAt: b.StartedAt,
		Elapsed:   b.Elapsed(now),
		Complete:  b.Complete(),
	}
}

// ClaimWord validates candidate against the participant's grid and, when
// valid, marks it found before returning so a concurrent duplicate sees
// already-found. A failed persist must be undone with ReleaseWord.
func (s *RoomSession) ClaimWord(participantID uint, seed []string, startedAt, now time.Time, candidate string) (puzzle.WordResult, string, BoardSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.board(participantID, seed, startedAt)
	result, word := puzzle.ValidateWord(b.Grid, b.Words, b.Found, candidate)
	if result == puzzle.WordValid {
		b.Found.Add(word)
		if b.Complete() {
			at := now
			b.FinishedAt = &at
		}
	}

	return result, word, BoardSnapshot{
		Words:     append([]string(nil), b.Words...),
		Found:     b.Found.Sorted(),
		StartedAt: b.StartedAt,
		Elapsed:   b.Elapsed(now),
		Complete:  b.Complete(),
	}
}

func (s *RoomSession) ReleaseWord(participantID uint, word string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.boards[participantID]; ok {
		b.Found.Remove(word)
		b.FinishedAt = nil
	}
}

// AllComplete reports whether every listed participant has a completed board.
func (s *RoomSession) AllComplete(participantIDs []uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(participantIDs) == 0 {
		return false
	}
	for _, id := range participantIDs {
		b, ok := s.boards[id]
		if !ok || !b.Complete() {
			return false
		}
	}
	return true
}

// StopClocks freezes every unfinished board at the given time.
func (s *RoomSession) StopClocks(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.boards {
		if b.FinishedAt == nil {
			stopped := at
			b.FinishedAt = &stopped
		}
	}
}

// EnsureCells lays out the board-select grid once; later calls are no-ops.
func (s *RoomSession) EnsureCells(categories []string, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.categories) > 0 {
		return
	}
	s.categories = append([]string(nil), categories...)
	s.rows = rows
	for _, category := range s.categories {
		for row := 0; row < rows; row++ {
			s.cells[cellKey{category, row}] = &Cell{
				Category:   category,
				Row:        row,
				Value:      RowValue(row),
				Difficulty: RowDifficulty(row),
			}
		}
	}
}

func (s *RoomSession) HasCells() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.categories) > 0
}

// ReserveCell claims a cell for a participant in one check-and-set step. A
// cell that is already taken is a conflict; the first claimant keeps it.
func (s *RoomSession) ReserveCell(category string, row int, participantID uint) (Cell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cell, ok := s.cells[cellKey{category, row}]
	if !ok {
		return Cell{}, errors.New(errors.ErrCodeNotFound, "cell not found")
	}
	if cell.Reserved {
		return Cell{}, errors.New(errors.ErrCodeConflict, "cell unavailable")
	}

	cell.Reserved = true
	cell.ReservedBy = participantID
	return *cell, nil
}

// BindCell attaches the drawn question to a reserved cell; the cell's holder
// becomes the question's drawer.
func (s *RoomSession) BindCell(category string, row int, questionID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cell, ok := s.cells[cellKey{category, row}]; ok {
		cell.QuestionID = questionID
		s.drawn[questionID] = &drawnQuestion{participantID: cell.ReservedBy}
	}
}

// HasBoardState reports whether the session holds board-select cells or draws.
func (s *RoomSession) HasBoardState() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.categories) > 0 || len(s.drawn) > 0
}

func (s *RoomSession) RecordDraw(questionID, participantID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawn[questionID] = &drawnQuestion{participantID: participantID}
}

// DrawnBy reports who drew a question in this session.
func (s *RoomSession) DrawnBy(questionID uint) (uint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drawn[questionID]
	if !ok {
		return 0, false
	}
	return d.participantID, true
}

func (s *RoomSession) MarkAnswered(questionID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.drawn[questionID]; ok {
		d.answered = true
	}
}

func (s *RoomSession) ReleaseCell(category string, row int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cell, ok := s.cells[cellKey{category, row}]; ok {
		cell.Reserved = false
		cell.ReservedBy = 0
		cell.QuestionID = 0
	}
}

// Cells lists the board column by column, top row first.
func (s *RoomSession) Cells() ([]string, []Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cells := make([]Cell, 0, len(s.cells))
	for _, category := range s.categories {
		for row := 0; row < s.rows; row++ {
			cells = append(cells, *s.cells[cellKey{category, row}])
		}
	}
	return append([]string(nil), s.categories...), cells
}

// BoardComplete reports whether every cell has been played: reserved, bound
// to a question, and that question answered by its drawer.
func (s *RoomSession) BoardComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cells) == 0 {
		return false
	}
	for _, cell := range s.cells {
		if !cell.Reserved || cell.QuestionID == 0 {
			return false
		}
		if d, ok := s.drawn[cell.QuestionID]; !ok || !d.answered {
			return false
		}
	}
	return true
}
