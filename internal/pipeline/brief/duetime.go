package brief

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"briefingcore/internal/domain/entity"
)

// DueToday implements the brief scheduler's due-today check (spec.md
// §4.3): true iff briefing's scheduled local time has passed today in its
// own timezone and (for WEEKLY) today is the configured day of week, and
// no report has run since the start of today.
//
// The day-of-week/time-of-day arithmetic is expressed as a standard cron
// schedule ("minute hour * * dow") parsed with robfig/cron rather than
// hand-rolled, so the same IANA-timezone-aware day boundary logic the
// teacher validates with time.LoadLocation also drives "is this the
// right weekday" instead of reimplementing it.
func DueToday(b *entity.Briefing, now time.Time) (bool, error) {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return false, fmt.Errorf("loading timezone %q: %w", b.Timezone, err)
	}
	userNow := now.In(loc)

	hour, minute, err := parseLocalTime(b.LocalTime)
	if err != nil {
		return false, err
	}

	dow := "*"
	if b.Frequency == entity.FrequencyWeekly {
		if b.DayOfWeek == nil {
			return false, fmt.Errorf("weekly briefing %s missing dayOfWeek", b.ID)
		}
		dow = strconv.Itoa(int(*b.DayOfWeek))
	}

	spec := fmt.Sprintf("%d %d * * %s", minute, hour, dow)
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return false, fmt.Errorf("parsing due-time schedule %q: %w", spec, err)
	}

	startOfDay := time.Date(userNow.Year(), userNow.Month(), userNow.Day(), 0, 0, 0, 0, loc)
	scheduledAt := schedule.Next(startOfDay.Add(-time.Second))

	if scheduledAt.Year() != userNow.Year() || scheduledAt.YearDay() != userNow.YearDay() {
		return false, nil // next occurrence isn't today (wrong weekday for WEEKLY)
	}
	if userNow.Before(scheduledAt) {
		return false, nil // today's scheduled time hasn't passed yet
	}
	if b.LastExecutedAt != nil {
		lastInZone := b.LastExecutedAt.In(loc)
		if !lastInZone.Before(startOfDay) {
			return false, nil // already ran today
		}
	}
	return true, nil
}

func parseLocalTime(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid localTime %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid localTime hour %q: %w", s, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid localTime minute %q: %w", s, err)
	}
	return hour, minute, nil
}

// SinceWindow computes the brief worker's "since" bound (spec.md §4.3
// step 2): lastExecutedAt if set, otherwise start-of-today minus one week
// (WEEKLY) or one day (DAILY).
func SinceWindow(b *entity.Briefing, now time.Time) (time.Time, error) {
	if b.LastExecutedAt != nil {
		return *b.LastExecutedAt, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("loading timezone %q: %w", b.Timezone, err)
	}
	userNow := now.In(loc)
	startOfDay := time.Date(userNow.Year(), userNow.Month(), userNow.Day(), 0, 0, 0, 0, loc)
	if b.Frequency == entity.FrequencyWeekly {
		return startOfDay.AddDate(0, 0, -7), nil
	}
	return startOfDay.AddDate(0, 0, -1), nil
}
