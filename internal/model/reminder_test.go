package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowOffsets(t *testing.T) {
	assert.Equal(t, 0, WindowToday.Offset())
	assert.Equal(t, 1, WindowTomorrow.Offset())
	assert.Equal(t, 2, WindowAdvance.Offset())
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("tomorrow")
	require.NoError(t, err)
	assert.Equal(t, WindowTomorrow, w)

	_, err = ParseWindow("next-week")
	assert.Error(t, err)

	_, err = ParseWindow("")
	assert.Error(t, err)
}

func TestWindowsCoversEveryWindow(t *testing.T) {
	ws := Windows()
	require.Len(t, ws, 3)
	for _, w := range ws {
		assert.True(t, w.Valid())
	}
}

func TestBucketFor(t *testing.T) {
	today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, BucketYesterday, BucketFor(today.AddDate(0, 0, -1), today))
	assert.Equal(t, BucketOlder, BucketFor(today.AddDate(0, 0, -2), today))
	assert.Equal(t, BucketOlder, BucketFor(today.AddDate(0, 0, -30), today))
}

func TestDateOfNormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	late := time.Date(2024, 3, 15, 23, 45, 0, 0, loc)

	got := DateOf(late)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestSameDate(t *testing.T) {
	a := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	b := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	c := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDate(a, b))
	assert.False(t, SameDate(a, c))
}
