package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
)

func TestParseReportID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseReportID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseReportID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseReportID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseReportID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, ReportID(valid), id)
	})
}

func TestReportIDTextRoundTrip(t *testing.T) {
	id := NewReportID()
	text, err := id.MarshalText()
	require.NoError(t, err)

	var parsed ReportID
	require.NoError(t, parsed.UnmarshalText(text))
	assert.Equal(t, id, parsed)
}

func TestParseElectionID(t *testing.T) {
	id, err := ParseElectionID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, ElectionID(42), id)

	for _, bad := range []string{"", "0", "-3", "forty"} {
		_, err := ParseElectionID(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", bad)
	}
}

func TestPrincipalCapabilities(t *testing.T) {
	tests := []struct {
		name       string
		principal  Principal
		canVerify  bool
		canRespond bool
	}{
		{"anonymous", Principal{}, false, false},
		{"citizen", Principal{ID: "u1"}, false, false},
		{"observer", Principal{ID: "u2", IsVerifiedObserver: true}, true, false},
		{"admin", Principal{ID: "u3", IsAdmin: true}, true, true},
		{"flags without identity", Principal{IsAdmin: true}, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.canVerify, tc.principal.CanVerify())
			assert.Equal(t, tc.canRespond, tc.principal.CanRespond())
		})
	}
}
