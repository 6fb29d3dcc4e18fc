package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rca-copilot/internal/models"
)

// ErrNotFound is returned when a record does not exist or its TTL expired.
// The two cases are indistinguishable on purpose: expiry must look exactly
// like never-submitted to callers.
var ErrNotFound = errors.New("result not found")

// ResultStore keeps one lifecycle record per job in Redis. Every write
// resets the record's TTL, so the expiry clock measures time since the last
// state change rather than since submission.
type ResultStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New wraps an existing Redis client. The caller owns the client's lifecycle.
func New(client *redis.Client, prefix string, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *ResultStore) key(jobID string) string {
	return s.prefix + jobID
}

// Put creates or overwrites the record for jobID and resets its expiry.
func (s *ResultStore) Put(ctx context.Context, jobID string, rec models.ResultRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := s.client.Set(ctx, s.key(jobID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	return nil
}

// Get returns the record for jobID or ErrNotFound.
func (s *ResultStore) Get(ctx context.Context, jobID string) (models.ResultRecord, error) {
	data, err := s.client.Get(ctx, s.key(jobID)).Bytes()
	if err == redis.Nil {
		return models.ResultRecord{}, ErrNotFound
	}
	if err != nil {
		return models.ResultRecord{}, fmt.Errorf("fetch result: %w", err)
	}
	var rec models.ResultRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.ResultRecord{}, fmt.Errorf("decode result: %w", err)
	}
	return rec, nil
}

// UpdateStatus rewrites only the status of an existing record, refreshing
// its expiry. A record that already expired returns ErrNotFound; the caller
// decides whether that matters.
func (s *ResultStore) UpdateStatus(ctx context.Context, jobID, status string) error {
	rec, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	rec.Status = status
	return s.Put(ctx, jobID, rec)
}

// Delete removes the record for jobID, if any.
func (s *ResultStore) Delete(ctx context.Context, jobID string) error {
	return s.client.Del(ctx, s.key(jobID)).Err()
}

// Entry is the listing view of one live record.
type Entry struct {
	JobID     string `json:"job_id"`
	QueryText string `json:"query_text"`
	Status    string `json:"status"`
}

// List returns every record still alive in the store. It scans the keyspace,
// so cost grows with the number of live records; with the default TTL that
// stays small.
func (s *ResultStore) List(ctx context.Context) ([]Entry, error) {
	entries := []Entry{}
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// Expired between scan and fetch.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", key, err)
		}
		var rec models.ResultRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		entries = append(entries, Entry{
			JobID:     strings.TrimPrefix(key, s.prefix),
			QueryText: rec.QueryText,
			Status:    rec.Status,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan results: %w", err)
	}
	return entries, nil
}

// Ping verifies the Redis connection.
func (s *ResultStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
