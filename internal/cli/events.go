package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/models"
)

const dateLayout = "2006-01-02"

// ListEvents prints every event, or those starting between two dates
// (both inclusive).
func (a *App) ListEvents(ctx context.Context, args []string) error {
	var (
		list []models.Event
		err  error
	)
	switch len(args) {
	case 0:
		list, err = a.calendar.all(ctx)
	case 2:
		from, ferr := time.ParseInLocation(dateLayout, args[0], time.Local)
		to, terr := time.ParseInLocation(dateLayout, args[1], time.Local)
		if ferr != nil || terr != nil {
			return usage("events [from to], dates as YYYY-MM-DD")
		}
		list, err = a.events.FindByDateRange(ctx, from, to.AddDate(0, 0, 1).Add(-time.Millisecond))
	default:
		return usage("events [from to], dates as YYYY-MM-DD")
	}
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Fprintln(a.out, "No events.")
		return nil
	}
	for _, e := range list {
		fmt.Fprintln(a.out, eventLine(e))
	}
	return nil
}

func eventLine(e models.Event) string {
	when := e.StartTime.Local().Format(timeLayout)
	if e.IsAllDay {
		when = e.StartTime.Local().Format(dateLayout) + " (all day)"
	} else if e.EndTime != nil {
		when += " - " + e.EndTime.Local().Format("15:04")
	}
	line := fmt.Sprintf("%s  %-24s  %s", shortID(e.ID), when, e.Title)
	if e.CalendarType != models.CalendarGregorian {
		line += fmt.Sprintf(" [%s]", e.CalendarType)
	}
	if e.RRule != nil {
		line += " (repeats)"
	}
	return line
}

// parseWhen accepts "YYYY-MM-DD" (all day) or "YYYY-MM-DD HH:MM".
func parseWhen(s string) (t time.Time, allDay bool, err error) {
	if t, err = time.ParseInLocation(timeLayout, s, time.Local); err == nil {
		return t, false, nil
	}
	if t, err = time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %q is not YYYY-MM-DD or YYYY-MM-DD HH:MM", common.ErrorValidation, s)
}

// AddEvent prompts for the event fields.
func (a *App) AddEvent(ctx context.Context) error {
	title, err := GetSimpleText(a.reader, "- Enter title", a.out)
	if err != nil {
		return err
	}
	startText, err := GetSimpleText(a.reader, "- Starts (YYYY-MM-DD or YYYY-MM-DD HH:MM)", a.out)
	if err != nil {
		return err
	}
	start, allDay, err := parseWhen(startText)
	if err != nil {
		return err
	}

	e := &models.Event{Title: title, StartTime: start, IsAllDay: allDay}

	if !allDay {
		endText, err := GetSimpleText(a.reader, "- Ends (optional)", a.out)
		if err != nil {
			return err
		}
		if endText != "" {
			if !strings.Contains(endText, "-") {
				endText = start.Format(dateLayout) + " " + endText
			}
			end, _, err := parseWhen(endText)
			if err != nil {
				return err
			}
			e.EndTime = &end
		}
	}

	if e.Description, err = GetSimpleText(a.reader, "- Description (optional)", a.out); err != nil {
		return err
	}
	calendar, err := GetSimpleText(a.reader, "- Calendar: gregorian or hijri [gregorian]", a.out)
	if err != nil {
		return err
	}
	e.CalendarType = models.CalendarType(strings.ToLower(calendar))

	rrule, err := GetSimpleText(a.reader, "- Recurrence rule, e.g. FREQ=WEEKLY (optional)", a.out)
	if err != nil {
		return err
	}
	if rrule != "" {
		e.RRule = &rrule
	}

	if err := a.events.Create(ctx, e); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved event %s.\n", shortID(e.ID))
	return nil
}

// DeleteEvent removes an event after confirmation.
func (a *App) DeleteEvent(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("delevent <id>")
	}
	all, err := a.calendar.all(ctx)
	if err != nil {
		return err
	}

	var target *models.Event
	for i := range all {
		if all[i].ID == args[0] {
			target = &all[i]
			break
		}
		if strings.HasPrefix(all[i].ID, args[0]) {
			if target != nil {
				return fmt.Errorf("%w: id prefix %q is ambiguous", common.ErrorValidation, args[0])
			}
			target = &all[i]
		}
	}
	if target == nil {
		return common.ErrorNotFound
	}

	if !Confirm(a.reader, fmt.Sprintf("Delete %q?", target.Title), a.out) {
		return errCancelled
	}
	if err := a.events.Delete(ctx, target.ID); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}
