// Package source turns external result pages into candidate vote tuples.
// Each way of obtaining results is a Strategy; a Chain tries them in order.
package source

import (
	"context"
	"net/url"
	"time"

	"github.com/technerv/election-monitor/internal/reconcile/fetch"
	"github.com/technerv/election-monitor/pkg/domain"
)

// Candidate is one fetched (constituency, candidate, votes) tuple. It lives
// only for the duration of a reconciliation run.
type Candidate struct {
	ConstituencyName string    `json:"constituency"`
	CandidateName    string    `json:"candidate"`
	Votes            int64     `json:"votes"`
	SourceURL        string    `json:"source_url"`
	FetchedAt        time.Time `json:"fetched_at"`
	// Verified is false for community sources.
	Verified bool `json:"verified"`
}

// Fetcher is the rate-limited client every strategy shares.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) (*fetch.Response, error)
}

// Target scopes one fetch to an election. Constituencies feed the
// per-constituency strategy.
type Target struct {
	ElectionID     domain.ElectionID
	Constituencies []string
}

type Strategy interface {
	Name() string
	Fetch(ctx context.Context, target Target) ([]Candidate, error)
}
