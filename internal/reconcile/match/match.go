// Package match resolves candidate names scraped from result pages to the
// candidates registered for an election.
package match

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/pkg/domain"
)

var (
	ErrNotFound  = errors.New("no candidate matches")
	ErrAmbiguous = errors.New("more than one candidate matches")
)

type entry struct {
	candidate models.Candidate
	norm      string
	tokens    []string
}

// Matcher holds the candidates of one election. It is read-only after New and
// safe for concurrent use.
type Matcher struct {
	entries []entry
}

func New(candidates []models.Candidate) *Matcher {
	m := &Matcher{entries: make([]entry, 0, len(candidates))}
	for _, c := range candidates {
		n := Normalize(c.Name)
		if n == "" {
			continue
		}
		m.entries = append(m.entries, entry{candidate: c, norm: n, tokens: strings.Fields(n)})
	}
	return m
}

// Match finds the candidate a scraped name refers to. Names match when one
// normalized name contains the other, or when they agree token by token with
// initials standing in for given names ("J. Otieno" and "James Otieno").
//
// When several candidates match, an exact normalized match wins; otherwise
// a known constituency narrows the set. Anything left ambiguous is
// ErrAmbiguous.
func (m *Matcher) Match(name string, constituency *domain.ConstituencyID) (models.Candidate, error) {
	q := Normalize(name)
	if q == "" {
		return models.Candidate{}, fmt.Errorf("%w: empty name", ErrNotFound)
	}
	qTokens := strings.Fields(q)

	var hits []entry
	for _, e := range m.entries {
		if strings.Contains(e.norm, q) || strings.Contains(q, e.norm) || initialsMatch(qTokens, e.tokens) {
			hits = append(hits, e)
		}
	}

	switch len(hits) {
	case 0:
		return models.Candidate{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	case 1:
		return hits[0].candidate, nil
	}

	var exact []entry
	for _, e := range hits {
		if e.norm == q {
			exact = append(exact, e)
		}
	}
	if len(exact) == 1 {
		return exact[0].candidate, nil
	}

	if constituency != nil {
		var local []entry
		for _, e := range hits {
			if e.candidate.ConstituencyID != nil && *e.candidate.ConstituencyID == *constituency {
				local = append(local, e)
			}
		}
		if len(local) == 1 {
			return local[0].candidate, nil
		}
	}
	return models.Candidate{}, fmt.Errorf("%w: %q matches %d candidates", ErrAmbiguous, name, len(hits))
}

// initialsMatch compares names of equal length token by token. A single
// letter matches any token starting with it; at least one token must match
// in full.
func initialsMatch(a, b []string) bool {
	if len(a) != len(b) || len(a) < 2 {
		return false
	}
	full := false
	for i := range a {
		switch {
		case a[i] == b[i]:
			full = true
		case len(a[i]) == 1 && strings.HasPrefix(b[i], a[i]):
		case len(b[i]) == 1 && strings.HasPrefix(a[i], b[i]):
		default:
			return false
		}
	}
	return full
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases s, strips diacritics and replaces punctuation with
// single spaces.
func Normalize(s string) string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
