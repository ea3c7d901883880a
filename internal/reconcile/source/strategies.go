package source

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

const (
	StrategyRTS          = "rts"
	StrategyConstituency = "constituency"
	StrategyFallback     = "fallback"
)

// RTSStrategy reads the primary results transmission endpoint for an
// election.
type RTSStrategy struct {
	client Fetcher
	rtsURL string
}

func NewRTSStrategy(client Fetcher, rtsURL string) *RTSStrategy {
	return &RTSStrategy{client: client, rtsURL: rtsURL}
}

func (s *RTSStrategy) Name() string { return StrategyRTS }

func (s *RTSStrategy) Fetch(ctx context.Context, target Target) ([]Candidate, error) {
	resp, err := s.client.Fetch(ctx, s.rtsURL+target.ElectionID.String(), nil)
	if err != nil {
		return nil, err
	}
	return ParseResults(resp.Body, resp.URL, resp.FetchedAt)
}

// ConstituencyStrategy queries each known constituency separately, trying
// the RTS endpoint first and the public election page second.
type ConstituencyStrategy struct {
	client  Fetcher
	rtsURL  string
	baseURL string
}

func NewConstituencyStrategy(client Fetcher, rtsURL, baseURL string) *ConstituencyStrategy {
	return &ConstituencyStrategy{client: client, rtsURL: rtsURL, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *ConstituencyStrategy) Name() string { return StrategyConstituency }

func (s *ConstituencyStrategy) Fetch(ctx context.Context, target Target) ([]Candidate, error) {
	if len(target.Constituencies) == 0 {
		return nil, nil
	}
	var (
		out  []Candidate
		errs []error
	)
	for _, name := range target.Constituencies {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		found, err := s.fetchOne(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for i := range found {
			if found[i].ConstituencyName == "" {
				found[i].ConstituencyName = name
			}
		}
		out = append(out, found...)
	}
	if len(out) == 0 && len(errs) == len(target.Constituencies) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func (s *ConstituencyStrategy) fetchOne(ctx context.Context, name string) ([]Candidate, error) {
	params := url.Values{"constituency": {name}}
	variants := []string{s.rtsURL, s.baseURL + "/election/"}

	var errs []error
	for _, variant := range variants {
		resp, err := s.client.Fetch(ctx, variant, params)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		found, err := ParseResults(resp.Body, resp.URL, resp.FetchedAt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	if len(errs) == len(variants) {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

// FallbackStrategy reads configured community sources. Nothing it returns
// is trusted as verified.
type FallbackStrategy struct {
	client Fetcher
	urls   []string
}

func NewFallbackStrategy(client Fetcher, urls []string) *FallbackStrategy {
	return &FallbackStrategy{client: client, urls: urls}
}

func (s *FallbackStrategy) Name() string { return StrategyFallback }

func (s *FallbackStrategy) Fetch(ctx context.Context, target Target) ([]Candidate, error) {
	var errs []error
	for _, raw := range s.urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resp, err := s.client.Fetch(ctx, raw, url.Values{"election": {target.ElectionID.String()}})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		found, err := ParseResults(resp.Body, resp.URL, resp.FetchedAt)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(found) == 0 {
			continue
		}
		for i := range found {
			found[i].Verified = false
		}
		return found, nil
	}
	if len(s.urls) > 0 && len(errs) == len(s.urls) {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}
