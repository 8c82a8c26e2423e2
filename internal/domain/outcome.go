package domain

// OutcomeStatus classifies the result of a language model backed operation.
type OutcomeStatus string

const (
	OutcomeOK       OutcomeStatus = "ok"
	OutcomeDegraded OutcomeStatus = "degraded"
	OutcomeFailed   OutcomeStatus = "failed"
)

// Outcome carries a value together with how trustworthy it is. A failed
// outcome still holds a safe fallback value, never a zero that could be
// mistaken for success.
type Outcome[T any] struct {
	Value  T             `json:"value"`
	Status OutcomeStatus `json:"status"`
	Err    error         `json:"-"`
	Notes  []string      `json:"notes,omitempty"`
}

// Succeeded wraps a value produced without problems.
func Succeeded[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Status: OutcomeOK}
}

// Degraded wraps a usable value that needs extra scrutiny.
func Degraded[T any](v T, err error, notes ...string) Outcome[T] {
	return Outcome[T]{Value: v, Status: OutcomeDegraded, Err: err, Notes: notes}
}

// Failed wraps the fallback value of an operation that did not succeed.
func Failed[T any](v T, err error, notes ...string) Outcome[T] {
	return Outcome[T]{Value: v, Status: OutcomeFailed, Err: err, Notes: notes}
}

// Usable reports whether the value came from a working capability.
func (o Outcome[T]) Usable() bool {
	return o.Status != OutcomeFailed
}

// ErrorText returns the error message or an empty string.
func (o Outcome[T]) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
