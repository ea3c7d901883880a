// Package store persists reports and the append-only verification trail.
package store

import (
	"github.com/technerv/election-monitor/internal/report/models"
)

// MutateFunc changes a report loaded for update and may return the audit
// event to append with it. Returning an error aborts without writing.
type MutateFunc func(r *models.Report) (*models.VerificationEvent, error)
