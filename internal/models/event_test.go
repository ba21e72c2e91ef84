package models

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Validate(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	ok := &Event{Title: "standup", StartTime: start}
	require.NoError(t, ok.Validate())
	assert.Equal(t, CalendarGregorian, ok.CalendarType)

	untitled := &Event{StartTime: start}
	require.NoError(t, untitled.Validate())

	bad := []*Event{
		{Title: "x"},
		{Title: "x", StartTime: start, EndTime: &before},
		{Title: "x", StartTime: start, CalendarType: "julian"},
	}
	for _, e := range bad {
		assert.ErrorIs(t, e.Validate(), common.ErrorValidation)
	}
}

func TestMillisRoundTrip(t *testing.T) {
	ts := time.Date(2026, 10, 15, 12, 30, 45, 123_000_000, time.UTC)
	assert.Equal(t, ts, FromMillis(ToMillis(ts)))
}
