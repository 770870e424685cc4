package services

import (
	"encoding/json"
	"time"

	"livequiz/models"
)

type EventType string

const (
	EventParticipantJoined  EventType = "participant-joined"
	EventGameStarted        EventType = "game-started"
	EventQuestionChanged    EventType = "question-changed"
	EventTimerTick          EventType = "timer-tick"
	EventTimerExpired       EventType = "timer-expired"
	EventAnswerSubmitted    EventType = "answer-submitted"
	EventAnswerResult       EventType = "answer-result"
	EventLeaderboardUpdated EventType = "leaderboard-updated"
	EventWordFound          EventType = "word-found"
	EventGameEnded          EventType = "game-ended"
	EventParticipantLeft    EventType = "participant-left"
	EventCellReserved       EventType = "cell-reserved"
	EventChatMessage        EventType = "chat-message"
	EventGameState          EventType = "game-state"
	EventError              EventType = "error"

	// client to server
	EventPing             EventType = "ping"
	EventPong             EventType = "pong"
	EventRequestGameState EventType = "request-game-state"
)

// Message is the envelope every channel subscriber receives.
type Message struct {
	Type      EventType   `json:"type"`
	RoomCode  string      `json:"room_code,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is what a subscriber sends up the socket.
type ClientMessage struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ParticipantJoinedPayload struct {
	ParticipantID    uint   `json:"participant_id"`
	DisplayName      string `json:"display_name"`
	ParticipantCount int    `json:"participant_count"`
}

type ParticipantLeftPayload struct {
	ParticipantID uint `json:"participant_id"`
	Remaining     int  `json:"remaining"`
}

type GameStartedPayload struct {
	StartedAt time.Time       `json:"started_at"`
	Mode      models.GameMode `json:"mode"`
}

type QuestionChangedPayload struct {
	Question       *models.PublicQuestion `json:"question"`
	QuestionNumber int                    `json:"question_number"`
	TotalQuestions int                    `json:"total_questions"`
	TimeLimit      int                    `json:"time_limit"`
}

type TimerPayload struct {
	Label     string `json:"label"`
	Remaining int    `json:"remaining"`
}

type AnswerSubmittedPayload struct {
	ParticipantID uint `json:"participant_id"`
	QuestionID    uint `json:"question_id"`
}

type AnswerResultPayload struct {
	QuestionID    uint `json:"question_id"`
	IsCorrect     bool `json:"is_correct"`
	Points        int  `json:"points"`
	CorrectOption int  `json:"correct_option"`
	Score         int  `json:"score"`
	Streak        int  `json:"streak"`
}

type LeaderboardPayload struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type WordFoundPayload struct {
	ParticipantID uint   `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Word          string `json:"word"`
	FoundCount    int    `json:"found_count"`
	TotalWords    int    `json:"total_words"`
	Points        int    `json:"points"`
}

type GameEndedPayload struct {
	Reason      string             `json:"reason"`
	FinishedAt  time.Time          `json:"finished_at"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type CellReservedPayload struct {
	Category      string `json:"category"`
	Row           int    `json:"row"`
	Value         int    `json:"value"`
	ParticipantID uint   `json:"participant_id"`
	DisplayName   string `json:"display_name"`
}

type ChatPayload struct {
	ParticipantID uint   `json:"participant_id"`
	DisplayName   string `json:"display_name"`
	Text          string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
