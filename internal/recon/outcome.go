package recon

import "fmt"

// Status classifies the result of an orchestrator operation.
type Status string

const (
	// StatusOK: the operation executed and mutated the table.
	StatusOK Status = "ok"
	// StatusNoOp: nothing to do (no selection, no pending set, no snapshot);
	// state is unchanged. Informational, not an error.
	StatusNoOp Status = "noop"
	// StatusBlocked: review mode refused a destructive operation.
	StatusBlocked Status = "blocked"
	// StatusStaged: auto-update is off; the removal set was stored as
	// pending for an explicit apply or cancel.
	StatusStaged Status = "staged"
	// StatusPreview: review mode produced a read-only preview.
	StatusPreview Status = "preview"
	// StatusFailed: the operation aborted; Error carries the user message.
	StatusFailed Status = "failed"
)

// Stats are the display statistics exposed to the UI after every operation.
type Stats struct {
	TotalRows     int     `json:"totalRows"`     // data rows at import time
	RemainingRows int     `json:"remainingRows"` // data rows currently present
	RemovedRows   int     `json:"removedRows"`   // data rows removed so far
	TotalArrears  float64 `json:"totalArrears"`  // debit minus credit over remaining data rows
}

// Outcome is the typed result every orchestrator operation returns. No error
// propagates past the operation boundary; failures are outcomes too.
type Outcome struct {
	Status  Status       `json:"status"`
	Message string       `json:"message"`
	Stats   Stats        `json:"stats"`
	Error   *UserMessage `json:"error,omitempty"`
}

func (r *Reconciler) ok(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusOK, Message: fmt.Sprintf(format, args...), Stats: r.stats}
}

func (r *Reconciler) noop(message string) Outcome {
	return Outcome{Status: StatusNoOp, Message: message, Stats: r.stats}
}

func (r *Reconciler) blocked(message string) Outcome {
	return Outcome{Status: StatusBlocked, Message: message, Stats: r.stats}
}

func (r *Reconciler) staged(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusStaged, Message: fmt.Sprintf(format, args...), Stats: r.stats}
}

func (r *Reconciler) preview(format string, args ...interface{}) Outcome {
	return Outcome{Status: StatusPreview, Message: fmt.Sprintf(format, args...), Stats: r.stats}
}

func (r *Reconciler) failed(err error) Outcome {
	msg := MapError(err)
	return Outcome{
		Status:  StatusFailed,
		Message: msg.Message,
		Stats:   r.stats,
		Error:   &msg,
	}
}
