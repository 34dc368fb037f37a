/*
filter.go - Query filter over reservations

PURPOSE:
  Translates a set of independently optional, AND-combined predicates
  into one filtered read. Parameter-combination rules are validated
  here, before any query runs: fromDate and withinDays only make sense
  together with upcoming=true and are rejected otherwise rather than
  silently ignored.

PREDICATES:
  StartDate/EndDate    bound the check-in window (EndDate extended to
                       end-of-day when given as a bare date upstream)
  Status               exact workflow-state match
  ClientName/Lastname  case-insensitive partial match on joined client
  Q                    free text, matches name OR lastname
  ClientEmail          exact match
  Upcoming             check-in on/after a reference date; reservations
                       without a check-in date are never upcoming
  FromDate             overrides the upcoming reference date
  WithinDays           upper-bounds upcoming: check-in strictly before
                       reference + WithinDays

Results are ordered most-recent check-in first.
*/
package reservation

import (
	"strings"
	"time"
)

// Filter is the open set of optional predicates. Zero values mean
// "not filtered on".
type Filter struct {
	StartDate *time.Time
	EndDate   *time.Time

	Status Status

	ClientName     string
	ClientLastname string
	ClientEmail    string
	Q              string

	Upcoming   bool
	FromDate   *time.Time
	WithinDays *int

	// Now anchors the upcoming window when FromDate is absent. Tests
	// pin it; production leaves it zero and gets time.Now.
	Now time.Time
}

// Validate enforces parameter-combination rules. It must be called
// before the filter reaches a store.
func (f Filter) Validate() error {
	if !f.Upcoming {
		if f.FromDate != nil {
			return &FilterError{Param: "fromDate", Reason: "only valid together with upcoming=true"}
		}
		if f.WithinDays != nil {
			return &FilterError{Param: "withinDays", Reason: "only valid together with upcoming=true"}
		}
	}
	if f.WithinDays != nil && *f.WithinDays <= 0 {
		return &FilterError{Param: "withinDays", Reason: "must be a positive number of days"}
	}
	if f.Status != "" && !f.Status.Valid() {
		return &FilterError{Param: "status", Reason: "unknown workflow state"}
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return &FilterError{Param: "endDate", Reason: "must not precede startDate"}
	}
	return nil
}

// UpcomingWindow resolves the reference date and optional exclusive
// upper bound of the upcoming filter.
func (f Filter) UpcomingWindow() (from time.Time, until *time.Time) {
	from = f.Now
	if from.IsZero() {
		from = time.Now().UTC()
	}
	if f.FromDate != nil {
		from = *f.FromDate
	}
	if f.WithinDays != nil {
		u := from.AddDate(0, 0, *f.WithinDays)
		until = &u
	}
	return from, until
}

// Matches evaluates the filter against a single reservation in memory.
// The SQLite store compiles the same semantics to a WHERE clause; the
// in-memory store and tests share this implementation.
func (f Filter) Matches(r *Reservation) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.StartDate != nil && (r.CheckIn == nil || r.CheckIn.Before(*f.StartDate)) {
		return false
	}
	if f.EndDate != nil && (r.CheckIn == nil || r.CheckIn.After(*f.EndDate)) {
		return false
	}
	if f.ClientName != "" && !containsFold(r.ClientName, f.ClientName) {
		return false
	}
	if f.ClientLastname != "" && !containsFold(r.ClientLastname, f.ClientLastname) {
		return false
	}
	if f.ClientEmail != "" && r.ClientEmail != f.ClientEmail {
		return false
	}
	if f.Q != "" && !containsFold(r.ClientName, f.Q) && !containsFold(r.ClientLastname, f.Q) {
		return false
	}
	if f.Upcoming {
		if r.CheckIn == nil {
			return false
		}
		from, until := f.UpcomingWindow()
		if r.CheckIn.Before(from) {
			return false
		}
		if until != nil && !r.CheckIn.Before(*until) {
			return false
		}
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
