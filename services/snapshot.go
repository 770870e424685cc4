package services

import (
	"context"
	"encoding/json"
	"time"

	"livequiz/models"
	"livequiz/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// RoomSnapshot is the pollable view of a room. Clients that missed broadcasts
// reconcile against it.
type RoomSnapshot struct {
	RoomCode         string                 `json:"room_code"`
	Name             string                 `json:"name"`
	Mode             models.GameMode        `json:"mode"`
	Status           models.GameStatus      `json:"status"`
	CurrentQuestion  *models.PublicQuestion `json:"current_question,omitempty"`
	QuestionsServed  int                    `json:"questions_served"`
	TargetCount      int                    `json:"target_count"`
	TimerLabel       string                 `json:"timer_label,omitempty"`
	SecondsRemaining *int                   `json:"seconds_remaining,omitempty"`
	ParticipantCount int                    `json:"participant_count"`
	Subscribers      int                    `json:"subscribers"`
	StartedAt        *time.Time             `json:"started_at,omitempty"`
	FinishedAt       *time.Time             `json:"finished_at,omitempty"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisSnapshotStore{client: client, ttl: ttl}
}

func snapshotKey(code string) string {
	return "room:" + code
}

func (s *RedisSnapshotStore) Save(ctx context.Context, snapshot *RoomSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to marshal room snapshot")
	}

	if err := s.client.Set(ctx, snapshotKey(snapshot.RoomCode), data, s.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to store room snapshot")
	}
	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context, code string) (*RoomSnapshot, error) {
	data, err := s.client.Get(ctx, snapshotKey(code)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load room snapshot")
	}

	var snapshot RoomSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to decode room snapshot")
	}
	return &snapshot, nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, snapshotKey(code)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to delete room snapshot")
	}
	return nil
}
