// Package processing is the asynchronous job pipeline: a FIFO queue of
// job envelopes, an idempotency ledger, a handler registry, and a worker
// pool draining the queue. Memory implementations are the reference;
// badger-backed ones persist across restarts.
package processing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the current envelope schema version.
const EnvelopeVersion = 1

// JobEnvelope is the unit of work flowing through the queue. The
// payload stays serialized until a worker resolves its registered type.
type JobEnvelope struct {
	JobID       string          `json:"jobId"`
	Type        string          `json:"type"`
	PayloadJSON json.RawMessage `json:"payloadJson"`
	CreatedAt   time.Time       `json:"createdAt"`
	Version     int             `json:"version"`
}

// NewEnvelope wraps a payload into an envelope with a fresh job id.
func NewEnvelope(jobType string, payload any) (*JobEnvelope, error) {
	return NewEnvelopeWithID(uuid.New().String(), jobType, payload)
}

// NewEnvelopeWithID wraps a payload under a caller-chosen job id, for
// callers that already persisted a ProcessingJob row.
func NewEnvelopeWithID(jobID, jobType string, payload any) (*JobEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize job payload: %w", err)
	}
	return &JobEnvelope{
		JobID:       jobID,
		Type:        jobType,
		PayloadJSON: raw,
		CreatedAt:   time.Now(),
		Version:     EnvelopeVersion,
	}, nil
}
