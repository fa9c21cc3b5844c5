// Package calendar expands master recurring events into individual
// instances, for third-party calendar feeds that deliver only the master
// record. It is a typical producer of the payloads the fetch orchestrator
// caches.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

// MaxInstances caps how many occurrences one master event can expand to.
const MaxInstances = 100

// ErrUnparsableTime indicates an event timestamp could not be parsed.
var ErrUnparsableTime = errors.New("calendar: unparsable timestamp")

// Recurrence patterns understood by Expand. Anything else leaves the master
// event as-is.
const (
	RecurrenceNone    = "none"
	RecurrenceDaily   = "daily"
	RecurrenceWeekly  = "weekly"
	RecurrenceMonthly = "monthly"
	RecurrenceYearly  = "yearly"
)

// Event mirrors one calendar feed entry. Field names follow the feed's wire
// format, including its iCalUld spelling.
type Event struct {
	Title               string `json:"title"`
	StartTime           string `json:"startTime"`
	EndTime             string `json:"endTime"`
	Recurrence          string `json:"recurrence,omitempty"`
	RecurrenceEndDate   string `json:"recurrenceEndDate,omitempty"`
	ICalUID             string `json:"iCalUld,omitempty"`
	IsRecurringInstance bool   `json:"isRecurringInstance,omitempty"`
	RecurringMasterID   string `json:"recurringMasterId,omitempty"`
}

// Expand walks events and replaces each recurring master with its expanded
// instances. Non-recurring events and masters that cannot be expanded
// (missing fields, unparsable times, unknown patterns) pass through
// unchanged.
func Expand(events []Event) []Event {
	expanded := make([]Event, 0, len(events))
	for _, event := range events {
		recurrence := strings.ToLower(event.Recurrence)
		if recurrence == "" || recurrence == RecurrenceNone {
			expanded = append(expanded, event)
			continue
		}

		instances, err := expandMaster(event, recurrence)
		if err != nil {
			expanded = append(expanded, event)
			continue
		}
		expanded = append(expanded, instances...)
	}
	return expanded
}

func expandMaster(master Event, recurrence string) ([]Event, error) {
	if master.StartTime == "" || master.EndTime == "" || master.RecurrenceEndDate == "" {
		return nil, fmt.Errorf("calendar: event %q missing required fields", master.Title)
	}

	start, err := parseFeedTime(master.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseFeedTime(master.EndTime)
	if err != nil {
		return nil, err
	}
	until, err := parseFeedTime(master.RecurrenceEndDate)
	if err != nil {
		return nil, err
	}

	duration := end.Sub(start)
	suffix := timezoneSuffix(master.StartTime)
	masterID := master.ICalUID
	if masterID == "" {
		masterID = "master_" + uuid.NewString()[:8]
	}

	var instances []Event
	current := start
	for !current.After(until) && len(instances) < MaxInstances {
		instance := master
		instance.StartTime = current.Format("2006-01-02T15:04:05") + suffix
		instance.EndTime = current.Add(duration).Format("2006-01-02T15:04:05") + suffix
		instance.IsRecurringInstance = true
		instance.RecurringMasterID = masterID
		instance.ICalUID = instanceID(master, current)

		instances = append(instances, instance)

		next, ok := nextOccurrence(current, recurrence)
		if !ok {
			break
		}
		// AddDate normalizes a day the next period lacks (Jan 31 + 1 month
		// lands in March). Such masters cannot expand on a stable day, so
		// they pass through unexpanded instead of drifting.
		if (recurrence == RecurrenceMonthly || recurrence == RecurrenceYearly) && next.Day() != current.Day() {
			return nil, fmt.Errorf("calendar: event %q: day %d does not exist in the next period", master.Title, current.Day())
		}
		current = next
	}
	return instances, nil
}

// parseFeedTime parses the feed's mixed timestamp formats, ignoring any
// timezone suffix; the suffix is reattached verbatim when formatting.
func parseFeedTime(s string) (time.Time, error) {
	naive := s
	if i := strings.Index(naive, "+"); i >= 0 {
		naive = naive[:i]
	}
	naive = strings.TrimSuffix(naive, "Z")

	t, err := dateparse.ParseAny(naive)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTime, s)
	}
	return t, nil
}

func timezoneSuffix(s string) string {
	if i := strings.Index(s, "+"); i >= 0 {
		return s[i:]
	}
	if strings.Contains(s, "Z") {
		return "Z"
	}
	return "+00:00"
}

func instanceID(master Event, occurrence time.Time) string {
	day := occurrence.Format("20060102")
	if master.ICalUID != "" {
		return master.ICalUID + "_" + day
	}
	base := strings.ReplaceAll(strings.ToLower(master.Title), " ", "_")
	if base == "" {
		base = "event"
	}
	return fmt.Sprintf("%s_%s_%s", base, day, uuid.NewString()[:8])
}

func nextOccurrence(current time.Time, recurrence string) (time.Time, bool) {
	switch recurrence {
	case RecurrenceDaily:
		return current.AddDate(0, 0, 1), true
	case RecurrenceWeekly:
		return current.AddDate(0, 0, 7), true
	case RecurrenceMonthly:
		return current.AddDate(0, 1, 0), true
	case RecurrenceYearly:
		return current.AddDate(1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// FilterForDate returns the events whose start time falls on the given
// day (YYYY-MM-DD).
func FilterForDate(events []Event, day string) []Event {
	var filtered []Event
	for _, event := range events {
		if strings.HasPrefix(event.StartTime, day) {
			filtered = append(filtered, event)
		}
	}
	return filtered
}
