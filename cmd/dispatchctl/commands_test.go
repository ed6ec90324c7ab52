package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ids, err := parseIDs([]string{a.String(), b.String()})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)

	ids, err = parseIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseIDs([]string{a.String(), "guard-7"})
	assert.ErrorContains(t, err, "guard-7")
}

func TestAutoAssignFlags(t *testing.T) {
	cmd := autoAssignCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--min-score", "55", "--prioritize-distance", "--exclude", uuid.NewString()}))

	minScore, err := cmd.Flags().GetFloat64("min-score")
	require.NoError(t, err)
	assert.Equal(t, 55.0, minScore)

	excluded, err := cmd.Flags().GetStringSlice("exclude")
	require.NoError(t, err)
	assert.Len(t, excluded, 1)
}

func TestScoreHistoryFlags(t *testing.T) {
	cmd := scoreHistoryCmd()
	limit, err := cmd.Flags().GetInt("limit")
	require.NoError(t, err)
	assert.Equal(t, 50, limit)

	require.NoError(t, cmd.ParseFlags([]string{"--limit", "10"}))
	limit, err = cmd.Flags().GetInt("limit")
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	assert.Error(t, cmd.Args(cmd, nil))
}
