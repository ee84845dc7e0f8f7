package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	liveCallKeyPrefix  = "call:live:"
	liveTurnsKeyPrefix = "call:turns:"
	liveCallTTL        = 24 * time.Hour
)

// LiveState is the in-flight mirror of one call, kept in Redis so the admin
// surface can observe calls before the durable record is finalized.
type LiveState struct {
	CallSID      string    `json:"call_sid"`
	StreamSID    string    `json:"stream_sid"`
	PatientPhone string    `json:"patient_phone"`
	PatientName  string    `json:"patient_name,omitempty"`
	NurseName    string    `json:"nurse_name,omitempty"`
	Phase        string    `json:"phase"`
	TurnCount    int       `json:"turn_count"`
	Outcome      string    `json:"outcome,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Ended        bool      `json:"ended"`
}

// LiveTurn is one rolling-transcript line.
type LiveTurn struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveStore mirrors live call state into Redis. Every write carries a TTL so
// abandoned calls age out on their own.
type LiveStore struct {
	client *redis.Client
}

// NewLiveStore creates a live call mirror backed by the given Redis client.
func NewLiveStore(client *redis.Client) *LiveStore {
	return &LiveStore{client: client}
}

// Save writes the current call state, refreshing the TTL.
func (s *LiveStore) Save(ctx context.Context, state *LiveState) error {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("session: marshal live state: %w", err)
	}
	key := liveCallKeyPrefix + state.CallSID
	if err := s.client.Set(ctx, key, data, liveCallTTL).Err(); err != nil {
		return fmt.Errorf("session: save live state: %w", err)
	}
	return nil
}

// Get returns the live state for a call, or nil if none exists.
func (s *LiveStore) Get(ctx context.Context, callSID string) (*LiveState, error) {
	key := liveCallKeyPrefix + callSID
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get live state: %w", err)
	}
	var state LiveState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("session: unmarshal live state: %w", err)
	}
	return &state, nil
}

// AppendTurn pushes one transcript line onto the rolling list.
func (s *LiveStore) AppendTurn(ctx context.Context, callSID, speaker, text string) error {
	turn := LiveTurn{Speaker: speaker, Text: text, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("session: marshal live turn: %w", err)
	}
	key := liveTurnsKeyPrefix + callSID
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, liveCallTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: append live turn: %w", err)
	}
	return nil
}

// Turns returns the rolling transcript, skipping lines that fail to decode.
func (s *LiveStore) Turns(ctx context.Context, callSID string) ([]LiveTurn, error) {
	key := liveTurnsKeyPrefix + callSID
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("session: list live turns: %w", err)
	}
	turns := make([]LiveTurn, 0, len(raw))
	for _, item := range raw {
		var t LiveTurn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// End marks the live state finished with a final outcome. Missing state is
// not an error; the call may have aged out.
func (s *LiveStore) End(ctx context.Context, callSID, outcome string) error {
	state, err := s.Get(ctx, callSID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	state.Ended = true
	state.Outcome = outcome
	state.Phase = StateClosed.String()
	return s.Save(ctx, state)
}
