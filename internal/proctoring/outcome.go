package proctoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	jobqueue "github.com/ulms/ulms-gateway/jobs"
)

// OutcomeTTL is how long the last detection outcome of a client is kept.
const OutcomeTTL = 24 * time.Hour

// OutcomeStore keeps the latest detection outcome per client in Redis for
// offline inspection.
type OutcomeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewOutcomeStore constructs an OutcomeStore.
func NewOutcomeStore(client *redis.Client) *OutcomeStore {
	return &OutcomeStore{client: client, ttl: OutcomeTTL}
}

func outcomeKey(clientID string) string {
	return "proctoring:outcome:" + clientID
}

// Record overwrites the stored outcome for the outcome's client.
func (s *OutcomeStore) Record(ctx context.Context, outcome jobqueue.Outcome) error {
	if outcome.ClientID == "" {
		return errors.New("outcome client id required")
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, outcomeKey(outcome.ClientID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Latest returns the last recorded outcome for clientID, or nil if none.
func (s *OutcomeStore) Latest(ctx context.Context, clientID string) (*jobqueue.Outcome, error) {
	data, err := s.client.Get(ctx, outcomeKey(clientID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out jobqueue.Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
