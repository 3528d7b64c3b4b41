package rag

import (
	"errors"
	"fmt"
)

// Kind classifies the stage of a turn that failed.
type Kind int

const (
	KindUnknown Kind = iota
	KindEmbedding
	KindSearch
	KindCompletion
	KindPersistence
	KindInconsistentInput
)

func (k Kind) String() string {
	switch k {
	case KindEmbedding:
		return "embedding"
	case KindSearch:
		return "search"
	case KindCompletion:
		return "completion"
	case KindPersistence:
		return "persistence"
	case KindInconsistentInput:
		return "inconsistent_input"
	}
	return "unknown"
}

// ErrTurnFailed is the only error detail exposed outside of the service.
var ErrTurnFailed = errors.New("failed to process message")

// TurnError carries the failing stage together with the cause.
type TurnError struct {
	Kind Kind
	Err  error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

func newTurnError(kind Kind, format string, args ...any) *TurnError {
	return &TurnError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first TurnError in err's chain.
func KindOf(err error) Kind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// IsRetrievalError reports whether err happened while embedding or searching.
func IsRetrievalError(err error) bool {
	k := KindOf(err)
	return k == KindEmbedding || k == KindSearch
}
