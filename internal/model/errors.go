package model

import (
	"errors"
	"fmt"
)

// FailureKind classifies a degraded outcome. None of them fail a batch.
type FailureKind string

const (
	FailureInsufficientText      FailureKind = "insufficient_text"
	FailureSearchTimeout         FailureKind = "search_timeout"
	FailureSearchUnavailable     FailureKind = "search_unavailable"
	FailureNoQualifyingEvidence  FailureKind = "no_qualifying_evidence"
	FailureUniquenessExhausted   FailureKind = "uniqueness_exhausted"
	FailureBatchDeadlineExceeded FailureKind = "batch_deadline_exceeded"
)

var (
	ErrInsufficientText      = errors.New("insufficient text")
	ErrSearchTimeout         = errors.New("search timed out")
	ErrSearchUnavailable     = errors.New("search unavailable")
	ErrNoQualifyingEvidence  = errors.New("no qualifying evidence")
	ErrUniquenessExhausted   = errors.New("uniqueness exhausted")
	ErrBatchDeadlineExceeded = errors.New("batch deadline exceeded")
)

// Err returns the sentinel error for the kind
func (k FailureKind) Err() error {
	switch k {
	case FailureInsufficientText:
		return ErrInsufficientText
	case FailureSearchTimeout:
		return ErrSearchTimeout
	case FailureSearchUnavailable:
		return ErrSearchUnavailable
	case FailureNoQualifyingEvidence:
		return ErrNoQualifyingEvidence
	case FailureUniquenessExhausted:
		return ErrUniquenessExhausted
	case FailureBatchDeadlineExceeded:
		return ErrBatchDeadlineExceeded
	}
	return nil
}

// Failure records one degraded step with enough context for offline diagnosis
type Failure struct {
	Kind        FailureKind `json:"kind"`
	CandidateID string      `json:"candidate_id,omitempty"`
	Claim       string      `json:"claim,omitempty"`
	Query       string      `json:"query,omitempty"`
	Detail      string      `json:"detail,omitempty"`
}

func (f Failure) Error() string {
	msg := string(f.Kind)
	if f.CandidateID != "" {
		msg += " candidate=" + f.CandidateID
	}
	if f.Query != "" {
		msg += fmt.Sprintf(" query=%q", f.Query)
	}
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

// Unwrap lets errors.Is match the failure against its sentinel
func (f Failure) Unwrap() error {
	return f.Kind.Err()
}
