package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/pkg/domain"
)

func constituency(id int64) *domain.ConstituencyID {
	c := domain.ConstituencyID(id)
	return &c
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "james otieno", Normalize("  James   OTIENO "))
	assert.Equal(t, "j otieno", Normalize("J. Otieno"))
	assert.Equal(t, "lang ata", Normalize("Lang'ata"))
	assert.Equal(t, "jose nino", Normalize("José Niño"))
	assert.Empty(t, Normalize(" .,- "))
}

func TestMatch(t *testing.T) {
	m := New([]models.Candidate{
		{ID: 1, Name: "James Otieno", ConstituencyID: constituency(10)},
		{ID: 2, Name: "Mary Achieng"},
		{ID: 3, Name: "Peter Kamau", ConstituencyID: constituency(10)},
		{ID: 4, Name: "Paul Kamau", ConstituencyID: constituency(11)},
		{ID: 5, Name: "Ann"},
		{ID: 6, Name: "Ann Wanjiru"},
	})

	tests := []struct {
		name         string
		query        string
		constituency *domain.ConstituencyID
		want         domain.CandidateID
		err          error
	}{
		{name: "case insensitive exact", query: "JAMES OTIENO", want: 1},
		{name: "query inside candidate", query: "Achieng", want: 2},
		{name: "candidate inside query", query: "Hon. Mary Achieng (ODM)", want: 2},
		{name: "initial for given name", query: "J. Otieno", want: 1},
		{name: "initial without dot", query: "M Achieng", want: 2},
		{name: "exact match beats containment", query: "ann", want: 5},
		{name: "surname shared is ambiguous", query: "Kamau", err: ErrAmbiguous},
		{name: "constituency narrows", query: "Kamau", constituency: constituency(11), want: 4},
		{name: "unrelated constituency stays ambiguous", query: "Kamau", constituency: constituency(12), err: ErrAmbiguous},
		{name: "unknown", query: "Grace Njeri", err: ErrNotFound},
		{name: "wrong initial", query: "K. Otieno", err: ErrNotFound},
		{name: "empty", query: "  ", err: ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := m.Match(tc.query, tc.constituency)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.ID)
		})
	}
}

func TestInitialsNeedOneFullToken(t *testing.T) {
	assert.False(t, initialsMatch([]string{"j", "o"}, []string{"james", "otieno"}))
	assert.True(t, initialsMatch([]string{"james", "o"}, []string{"james", "otieno"}))
	assert.False(t, initialsMatch([]string{"james"}, []string{"james", "otieno"}))
}
