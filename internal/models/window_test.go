package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow_Valid(t *testing.T) {
	w, err := ParseWindow("2024-01-01", "2024-01-30")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", w.StartDate())
	assert.Equal(t, "2024-01-30", w.EndDate())
	assert.Equal(t, 30, w.Days())
}

func TestParseWindow_SingleDay(t *testing.T) {
	w, err := ParseWindow("2024-06-15", "2024-06-15")
	require.NoError(t, err)
	assert.Equal(t, 1, w.Days())
}

func TestParseWindow_InvalidFormat(t *testing.T) {
	cases := [][2]string{
		{"2024/01/01", "2024-01-30"},
		{"2024-01-01", "01-30-2024"},
		{"", "2024-01-30"},
		{"2024-1-1", "2024-01-30"},
		{"not-a-date", "2024-01-30"},
	}
	for _, c := range cases {
		_, err := ParseWindow(c[0], c[1])
		assert.Error(t, err, "start=%q end=%q", c[0], c[1])
	}
}

func TestParseWindow_StartAfterEnd(t *testing.T) {
	_, err := ParseWindow("2024-02-01", "2024-01-01")
	assert.Error(t, err)
}

func TestWindow_Previous(t *testing.T) {
	w, err := ParseWindow("2024-01-01", "2024-01-30")
	require.NoError(t, err)

	prev := w.Previous()
	assert.Equal(t, "2023-12-02", prev.StartDate())
	assert.Equal(t, "2023-12-31", prev.EndDate())
	assert.Equal(t, w.Days(), prev.Days())
}

func TestWindow_PreviousSingleDay(t *testing.T) {
	w, err := ParseWindow("2024-03-10", "2024-03-10")
	require.NoError(t, err)

	prev := w.Previous()
	assert.Equal(t, "2024-03-09", prev.StartDate())
	assert.Equal(t, "2024-03-09", prev.EndDate())
}

func TestWindow_Key(t *testing.T) {
	w, err := ParseWindow("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01:2024-01-31", w.Key())
}
