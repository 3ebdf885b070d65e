package model

import "time"

// Reconciliation is a captured payment whose order record still has to be brought in line with the gateway.
type Reconciliation struct {
	ID         int64
	OrderID    string
	Reference  string
	Reason     string
	Attempts   int
	LastError  string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Open reports whether the entry still awaits resolution.
func (r Reconciliation) Open() bool {
	return r.ResolvedAt == nil
}
