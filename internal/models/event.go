package models

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
)

// CalendarType names the calendar an event was entered in. Conversion
// between calendars is left to the caller.
type CalendarType string

const (
	CalendarGregorian CalendarType = "gregorian"
	CalendarHijri     CalendarType = "hijri"
)

func (c CalendarType) Valid() bool {
	return c == CalendarGregorian || c == CalendarHijri
}

// Event is a decrypted calendar event. Title, Description and RRule are
// stored encrypted; StartTime and EndTime are stored in clear so range
// queries can use the index.
type Event struct {
	ID           string
	Title        string
	Description  string
	StartTime    time.Time
	EndTime      *time.Time
	IsAllDay     bool
	CalendarType CalendarType
	RRule        *string
}

// Validate checks the fields the schema requires. An empty title is
// allowed; it is still stored encrypted.
func (e *Event) Validate() error {
	if e.StartTime.IsZero() {
		return fmt.Errorf("%w: event start time is required", common.ErrorValidation)
	}
	if e.EndTime != nil && e.EndTime.Before(e.StartTime) {
		return fmt.Errorf("%w: event ends before it starts", common.ErrorValidation)
	}
	if e.CalendarType == "" {
		e.CalendarType = CalendarGregorian
	}
	if !e.CalendarType.Valid() {
		return fmt.Errorf("%w: unknown calendar type %q", common.ErrorValidation, e.CalendarType)
	}
	return nil
}

// EventRow is an events table row as stored.
type EventRow struct {
	ID                   string  `json:"id"`
	TitleEncrypted       string  `json:"title_encrypted"`
	DescriptionEncrypted *string `json:"description_encrypted"`
	StartTime            int64   `json:"start_time"`
	EndTime              *int64  `json:"end_time"`
	IsAllDay             bool    `json:"is_all_day"`
	CalendarType         string  `json:"calendar_type"`
	RRuleEncrypted       *string `json:"rrule_encrypted"`
}
