package racecal

import "time"

// Date returns the civil date y-m-d as midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Day truncates t to its civil date, read in t's own location, as
// midnight UTC.
func Day(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// Window is an inclusive range of civil dates.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow returns the window from includePast days before today to days
// days after it.
func NewWindow(today time.Time, days, includePast int) Window {
	today = Day(today)
	return Window{
		Start: today.AddDate(0, 0, -max(0, includePast)),
		End:   today.AddDate(0, 0, max(0, days)),
	}
}

// Validate returns an error if the window is empty or inverted.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return Errorf(EINVALID, "window start and end required")
	}
	if w.End.Before(w.Start) {
		return Errorf(EINVALID, "window end %s before start %s",
			w.End.Format(time.DateOnly), w.Start.Format(time.DateOnly))
	}
	return nil
}

// Contains reports whether the civil date of d falls inside the window.
func (w Window) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the number of days spanned, counting both ends.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Dates returns every date in the window in order.
func (w Window) Dates() []time.Time {
	var dates []time.Time
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// String renders the window as "start..end".
func (w Window) String() string {
	return w.Start.Format(time.DateOnly) + ".." + w.End.Format(time.DateOnly)
}
