package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/internal/fanout"
	"github.com/technerv/election-monitor/internal/reconcile/match"
	"github.com/technerv/election-monitor/internal/reconcile/source"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
	platformstrings "github.com/technerv/election-monitor/pkg/platform/strings"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

// ResultChange is the payload of a result.updated event.
type ResultChange struct {
	ElectionID domain.ElectionID `json:"election_id"`
	Candidate  string            `json:"candidate"`
	Outcome    string            `json:"outcome"`
	Result     models.Result     `json:"result"`
}

// Run reconciles the elections req selects. Failures are recorded in the
// summary and never abort the run; cancelling ctx stops further fetches and
// marks the summary cancelled.
func (s *Synchronizer) Run(ctx context.Context, req Request) *Summary {
	ctx, span := s.tracer.Start(ctx, "reconcile.Run")
	defer span.End()
	span.SetAttributes(attribute.String("run.kind", req.kind()))

	start := time.Now()
	defer s.metrics.ObserveRun(req.kind(), start)

	now := requestcontext.Now(ctx)
	sum := newSummary(now)

	if !req.Live && !req.ResultsOnly && s.announcements != nil {
		s.checkAnnouncements(ctx, now, sum)
	}

	elections, err := s.selectElections(ctx, req, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "election selection failed")
		sum.addError("select elections: %v", err)
		return s.finish(ctx, req, sum)
	}
	if req.Live && len(elections) == 0 {
		sum.Status = StatusNoActiveElections
		return s.finish(ctx, req, sum)
	}

	constituencies, err := s.constituencyNames(ctx)
	if err != nil {
		// The per-constituency strategy just has nothing to query.
		sum.addError("list constituencies: %v", err)
	}

	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for _, e := range elections {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.syncElection(ctx, e, constituencies, now, sum)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		sum.Status = StatusCancelled
	}
	span.SetAttributes(
		attribute.Int("run.elections_checked", sum.ElectionsChecked),
		attribute.Int("run.errors", len(sum.Errors)),
	)
	return s.finish(ctx, req, sum)
}

func (s *Synchronizer) finish(ctx context.Context, req Request, sum *Summary) *Summary {
	s.logger.InfoContext(ctx, "reconciliation finished",
		"kind", req.kind(),
		"status", sum.Status,
		"elections_checked", sum.ElectionsChecked,
		"results_fetched", sum.ResultsFetched,
		"results_created", sum.ResultsCreated,
		"results_updated", sum.ResultsUpdated,
		"results_skipped", sum.ResultsSkipped,
		"errors", len(sum.Errors),
	)
	return sum
}

func (s *Synchronizer) selectElections(ctx context.Context, req Request, now time.Time) ([]models.Election, error) {
	today := models.Day(now)
	switch {
	case req.ElectionID != nil:
		e, err := s.store.FindElection(ctx, *req.ElectionID)
		if errors.Is(err, sentinel.ErrNotFound) || (err == nil && !e.IsActive) {
			return nil, fmt.Errorf("election %s not found or inactive", *req.ElectionID)
		}
		if err != nil {
			return nil, err
		}
		return []models.Election{*e}, nil
	case req.Live:
		from, to := today.Add(-liveLookback), today.Add(liveLookahead)
		return s.store.ListElections(ctx, models.ElectionFilter{ActiveOnly: true, From: &from, To: &to})
	default:
		return s.store.ListElections(ctx, models.ElectionFilter{ActiveOnly: true, To: &today})
	}
}

func (s *Synchronizer) constituencyNames(ctx context.Context) ([]string, error) {
	all, err := s.store.ListConstituencies(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for _, c := range all {
		names = append(names, c.Name)
	}
	return platformstrings.DedupeFold(names), nil
}

func leaseScope(id domain.ElectionID) string {
	return "election:" + id.String()
}

func (s *Synchronizer) syncElection(ctx context.Context, e models.Election, constituencies []string, now time.Time, sum *Summary) {
	release, err := s.leases.Acquire(ctx, leaseScope(e.ID), s.leaseTTL)
	if err != nil {
		if errors.Is(err, sentinel.ErrHeld) {
			s.metrics.IncSkipped("lease_held")
			sum.addError("election %s: sync already in progress", e.ID)
			return
		}
		sum.addError("election %s: acquire lease: %v", e.ID, err)
		return
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.WarnContext(ctx, "lease release failed", "election_id", e.ID, "error", err)
		}
	}()

	var tally electionTally
	defer func() { sum.merge(tally) }()

	outcome, err := s.results.Fetch(ctx, source.Target{ElectionID: e.ID, Constituencies: constituencies})
	if err != nil {
		if ctx.Err() == nil {
			sum.addError("election %s: %v", e.ID, err)
		}
		return
	}
	tally.fetched = len(outcome.Candidates)

	candidates, err := s.store.CandidatesByElection(ctx, e.ID)
	if err != nil {
		sum.addError("election %s: load candidates: %v", e.ID, err)
		return
	}
	matcher := match.New(candidates)
	stations := newStationCache(s.store)

	batch := newResultBatch()
	for _, fetched := range outcome.Candidates {
		if ctx.Err() != nil {
			return
		}
		s.stage(ctx, e, matcher, stations, fetched, now, batch, &tally, sum)
	}
	for _, staged := range batch.results {
		if ctx.Err() != nil {
			return
		}
		s.apply(ctx, e, staged, &tally, sum)
	}

	verified, err := s.store.CountVerifiedResults(ctx, e.ID)
	if err != nil {
		sum.addError("election %s: count verified results: %v", e.ID, err)
		return
	}
	tally.verified = verified
}

// stage resolves one fetched tuple to a result key. Unmatched and ambiguous
// names are skipped; candidates are never created from scraped data.
func (s *Synchronizer) stage(ctx context.Context, e models.Election, matcher *match.Matcher, stations *stationCache,
	fetched source.Candidate, now time.Time, batch *resultBatch, tally *electionTally, sum *Summary) {
	constituencyID, stationID, err := stations.resolve(ctx, fetched.ConstituencyName)
	if err != nil {
		sum.addError("election %s: resolve station for %q: %v", e.ID, fetched.ConstituencyName, err)
		tally.skipped++
		return
	}

	candidate, err := matcher.Match(fetched.CandidateName, constituencyID)
	if err != nil {
		reason := "not_found"
		if errors.Is(err, match.ErrAmbiguous) {
			reason = "ambiguous"
		}
		s.skip(ctx, e, fetched, reason, tally)
		return
	}

	result, err := models.NewResult(candidate.ID, stationID, int(fetched.Votes), fetched.Verified, fetched.SourceURL, now)
	if err != nil {
		tally.skipped++
		return
	}
	if !batch.add(candidate.Name, result) {
		s.skip(ctx, e, fetched, "duplicate_station", tally)
	}
}

func (s *Synchronizer) skip(ctx context.Context, e models.Election, fetched source.Candidate, reason string, tally *electionTally) {
	s.metrics.IncSkipped(reason)
	s.logger.WarnContext(ctx, "fetched result skipped",
		"election_id", e.ID,
		"candidate", fetched.CandidateName,
		"constituency", fetched.ConstituencyName,
		"reason", reason,
	)
	tally.skipped++
}

// apply writes one staged result and publishes it when storage changed.
func (s *Synchronizer) apply(ctx context.Context, e models.Election, staged stagedResult, tally *electionTally, sum *Summary) {
	result := staged.result
	outcome, err := s.store.UpsertResult(ctx, result)
	if err != nil {
		sum.addError("election %s: upsert result for %q: %v", e.ID, staged.candidate, err)
		tally.skipped++
		return
	}
	s.metrics.IncResult(outcome.String())

	switch outcome {
	case models.Created:
		tally.created++
	case models.Updated:
		tally.updated++
	case models.Retained:
		s.logger.WarnContext(ctx, "unverified result did not replace verified count",
			"election_id", e.ID,
			"candidate", staged.candidate,
			"votes", result.Votes,
		)
		tally.skipped++
		return
	default:
		return
	}
	s.publishResult(ctx, e.ID, staged.candidate, outcome, result)
}

type stagedResult struct {
	candidate string
	result    *models.Result
}

// resultBatch holds one result per key, in fetch order. Tuples that share the
// aggregate row are summed, since each one is a share of the total; a second
// tuple for the same station is rejected.
type resultBatch struct {
	results []stagedResult
	index   map[models.ResultKey]int
}

func newResultBatch() *resultBatch {
	return &resultBatch{index: make(map[models.ResultKey]int)}
}

func (b *resultBatch) add(candidate string, r *models.Result) bool {
	key := r.Key()
	i, ok := b.index[key]
	if !ok {
		b.index[key] = len(b.results)
		b.results = append(b.results, stagedResult{candidate: candidate, result: r})
		return true
	}
	if r.PollingStationID != nil {
		return false
	}
	existing := b.results[i].result
	existing.Votes += r.Votes
	existing.Verified = existing.Verified && r.Verified
	return true
}

func (s *Synchronizer) publishResult(ctx context.Context, electionID domain.ElectionID, candidate string, outcome models.UpsertOutcome, r *models.Result) {
	ev, err := fanout.NewEvent(fanout.EventResultUpdated, fanout.ResultTopics(electionID), ResultChange{
		ElectionID: electionID,
		Candidate:  candidate,
		Outcome:    outcome.String(),
		Result:     *r,
	}, r.UpdatedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode event", "type", fanout.EventResultUpdated, "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "event not published",
			"type", fanout.EventResultUpdated,
			"election_id", electionID,
			"error", err,
		)
	}
}

// stationCache memoizes constituency lookups for one election's run.
type stationCache struct {
	store Store
	byKey map[string]stationRef
}

type stationRef struct {
	constituency *domain.ConstituencyID
	station      *domain.StationID
}

func newStationCache(store Store) *stationCache {
	return &stationCache{store: store, byKey: make(map[string]stationRef)}
}

// resolve maps a constituency name to the first polling station of the
// matching constituency. Results without a known constituency, or for a
// constituency without stations, land on the aggregate row.
func (c *stationCache) resolve(ctx context.Context, name string) (*domain.ConstituencyID, *domain.StationID, error) {
	if name == "" {
		return nil, nil, nil
	}
	key := match.Normalize(name)
	if ref, ok := c.byKey[key]; ok {
		return ref.constituency, ref.station, nil
	}

	var ref stationRef
	con, err := c.store.FindConstituencyByName(ctx, name)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
	case err != nil:
		return nil, nil, err
	default:
		ref.constituency = &con.ID
		st, err := c.store.FirstStation(ctx, con.ID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
		case err != nil:
			return nil, nil, err
		default:
			ref.station = &st.ID
		}
	}
	c.byKey[key] = ref
	return ref.constituency, ref.station, nil
}
