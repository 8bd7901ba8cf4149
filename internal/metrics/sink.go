// Package metrics records board activity.
package metrics

import "time"

// Result labels.
const (
	ResultOK        = "ok"
	ResultNoop      = "noop"
	ResultForbidden = "forbidden"
	ResultError     = "error"
)

// Sink receives board events. Implementations must be safe for concurrent use.
type Sink interface {
	// RecordAction counts one board action (add, move_up, delete, ...).
	RecordAction(action, result string, took time.Duration)
	// RecordStoreWrite counts one single-row store write.
	RecordStoreWrite(op string, err error)
	// RecordReload counts a full week reload done by the sync loop.
	RecordReload(cards int, err error, took time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAction(string, string, time.Duration) {}
func (Nop) RecordStoreWrite(string, error)             {}
func (Nop) RecordReload(int, error, time.Duration)     {}
