// Package review records human validation judgements on groups.
package review

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidResult is returned for results a sink refuses to store.
var ErrInvalidResult = errors.New("invalid review result")

// Result is one reviewer's judgement on a group.
type Result struct {
	GroupID    int       `json:"group_id"`
	IsValid    bool      `json:"is_valid"`
	Flags      []string  `json:"flags,omitempty"`
	Reviewer   string    `json:"reviewer,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// Sink persists results keyed by group id. Recording a group again replaces
// its earlier result.
type Sink interface {
	AppendOrReplace(ctx context.Context, groupID int, result Result) error
	Results(ctx context.Context) ([]Result, error)
	Close() error
}

func validate(groupID int, result *Result) error {
	if groupID < 1 {
		return errors.Join(ErrInvalidResult, errors.New("group id must be positive"))
	}
	result.GroupID = groupID
	if result.ReviewedAt.IsZero() {
		result.ReviewedAt = time.Now().UTC()
	}
	return nil
}
