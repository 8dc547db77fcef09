package dispute

import (
	"math"
	"time"
)

// Catalog codes the lifecycle depends on. They must exist in the reference tables.
const (
	StatusPending      = "PENDING"
	EventCreated       = "CREATED"
	EventStatusUpdated = "STATUS_UPDATED"
)

const (
	TopicCreated = "dispute.created"
	TopicUpdated = "dispute.updated"
)

// Dispute mirrors the disputes table.
type Dispute struct {
	ID             string
	TransactionRef string
	UserID         string
	ReasonCode     string
	StatusCode     string
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Event is one append-only audit record of a dispute transition.
type Event struct {
	ID            string
	DisputeID     string
	EventTypeCode string
	Payload       EventPayload
	CreatedAt     time.Time
}

type CreateParams struct {
	TransactionRef string
	UserID         string
	ReasonCode     string
}

// UpdateStatusParams changes a dispute's status. When ExpectedVersion is
// set the update only applies if the stored version still matches.
type UpdateStatusParams struct {
	DisputeID       string
	StatusCode      string
	ExpectedVersion *int
}

type ListFilters struct {
	StatusCode string
	Page       int
	PageSize   int
}

type Page struct {
	Items    []Dispute
	Total    int
	Page     int
	PageSize int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// maxPage keeps offset() well inside int and the Postgres OFFSET range.
	maxPage = math.MaxInt32 / maxPageSize
)

func (f ListFilters) normalize() ListFilters {
	switch {
	case f.Page < 1:
		f.Page = 1
	case f.Page > maxPage:
		f.Page = maxPage
	}
	switch {
	case f.PageSize <= 0:
		f.PageSize = defaultPageSize
	case f.PageSize > maxPageSize:
		f.PageSize = maxPageSize
	}
	return f
}

func (f ListFilters) offset() int {
	return (f.Page - 1) * f.PageSize
}

// Snapshot is the wire shape published on the dispute topics.
type Snapshot struct {
	ID             string    `json:"id"`
	TransactionRef string    `json:"transactionRef"`
	UserID         string    `json:"userId"`
	ReasonCode     string    `json:"reasonCode"`
	StatusCode     string    `json:"statusCode"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (d Dispute) Snapshot() Snapshot {
	return Snapshot{
		ID:             d.ID,
		TransactionRef: d.TransactionRef,
		UserID:         d.UserID,
		ReasonCode:     d.ReasonCode,
		StatusCode:     d.StatusCode,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}
