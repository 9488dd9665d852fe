package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeywordList(t *testing.T) {
	c := Contest{Keywords: "KHIND, fan , , PERADUAN"}
	require.Equal(t, []string{"KHIND", "fan", "PERADUAN"}, c.KeywordList())
	require.Equal(t, "KHIND", c.FirstKeyword())

	require.Empty(t, Contest{}.KeywordList())
	require.Empty(t, Contest{}.FirstKeyword())
}

func TestMatchesKeyword(t *testing.T) {
	c := Contest{Keywords: "KHIND,PERADUAN"}
	require.True(t, c.MatchesKeyword("khind"))
	require.True(t, c.MatchesKeyword("I want to join the KHIND contest"))
	require.True(t, c.MatchesKeyword("Peraduan"))
	require.False(t, c.MatchesKeyword("hello"))
	require.False(t, c.MatchesKeyword(""))

	// No keywords: any non-empty text matches.
	open := Contest{}
	require.True(t, open.MatchesKeyword("anything"))
	require.False(t, open.MatchesKeyword("  "))
}

func TestContestIsOpen(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	require.True(t, Contest{IsActive: true}.IsOpen(now))
	require.True(t, Contest{IsActive: true, StartsAt: &past, EndsAt: &future}.IsOpen(now))
	require.False(t, Contest{IsActive: false}.IsOpen(now))
	require.False(t, Contest{IsActive: true, StartsAt: &future}.IsOpen(now))
	require.False(t, Contest{IsActive: true, EndsAt: &past}.IsOpen(now))
}
