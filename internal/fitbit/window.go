package fitbit

import "time"

// Window selects which endpoint variant a metric fetch uses: the full-day
// resource, or the time-ranged intraday resource bounded below by an
// incremental start time.
type Window struct {
	Date  time.Time
	Start string // "HH:MM"; empty means full-day
	End   string
}

// SelectWindow applies the incremental-window rule: when the optional start
// time falls on the same calendar day as the target date the provider's
// time-ranged intraday variant is used (start time to end of day), otherwise
// the full-day variant.
func SelectWindow(date time.Time, since *time.Time) Window {
	if since != nil && sameDay(*since, date) {
		return Window{
			Date:  date,
			Start: since.Format("15:04"),
			End:   "23:59",
		}
	}
	return Window{Date: date}
}

// Intraday reports whether the window is a time-ranged intraday request.
func (w Window) Intraday() bool {
	return w.Start != ""
}

// DateString formats the window's target date the way the provider's URLs
// expect it.
func (w Window) DateString() string {
	return w.Date.Format("2006-01-02")
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
