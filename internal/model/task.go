package model

// TaskResult is the in-memory outcome of one orchestration task. It
// exists only for the duration of a single run; the persisted trace is
// the Search record's status detail.
type TaskResult struct {
	Key     TaskKey     `json:"key"`
	Weight  int         `json:"weight"`
	Outcome TaskOutcome `json:"outcome"`
	Error   string      `json:"error,omitempty"`
}

// Failed reports whether the task settled with a failure.
func (r TaskResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}
