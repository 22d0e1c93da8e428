package model

import "time"

// IngestedRecord is a row in a provisioned ingestion table.
type IngestedRecord struct {
	ID          int64
	WebhookID   string
	Payload     string
	ReceivedAt  time.Time
	Processed   bool
	ProcessedAt *time.Time
}

// OrderTerm is a single ORDER BY column.
type OrderTerm struct {
	Column     string
	Descending bool
}

// ReadQuery selects rows from a configured endpoint object. Schema, Object,
// Columns and OrderBy columns must already be validated identifiers.
type ReadQuery struct {
	Schema  string
	Object  string
	Columns []string
	OrderBy []OrderTerm
	Top     int
	Skip    int
}
