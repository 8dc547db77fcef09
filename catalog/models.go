package catalog

import "errors"

// ErrNotFound signals the code is absent from the requested table.
var ErrNotFound = errors.New("catalog: not found")

// Kind names one of the reference tables.
type Kind string

const (
	KindReason          Kind = "reason"
	KindStatus          Kind = "status"
	KindEventType       Kind = "event_type"
	KindTransactionType Kind = "transaction_type"
)

// Kinds lists every reference table in seed order.
var Kinds = []Kind{KindReason, KindStatus, KindEventType, KindTransactionType}

// Entry is a code and its human description.
type Entry struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

func (k Kind) table() (string, bool) {
	switch k {
	case KindReason:
		return "dispute_reasons", true
	case KindStatus:
		return "dispute_statuses", true
	case KindEventType:
		return "dispute_event_types", true
	case KindTransactionType:
		return "transaction_types", true
	default:
		return "", false
	}
}
