package outline

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DefaultLookBehind is the fraction of a year a partial deadline may lie in
// the past before it is read as next year's date.
const DefaultLookBehind = 0.25

const year = time.Duration(365.2425 * 24 * float64(time.Hour))

var dateRe = regexp.MustCompile(`^(?:([0-9]{4})-)?([0-9]{1,2})-([0-9]{1,2})$`)

// DeadlineResolver turns `MM-DD` and `YYYY-MM-DD` into dates relative to Now.
type DeadlineResolver struct {
	Now        time.Time
	LookBehind float64
}

// Resolve parses a deadline. A partial date takes the year that puts it
// inside the one-year window starting LookBehind years before Now.
func (r DeadlineResolver) Resolve(s string) (time.Time, error) {
	m := dateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q, expected MM-DD or YYYY-MM-DD", s)
	}
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	loc := r.Now.Location()

	if m[1] != "" {
		y, _ := strconv.Atoi(m[1])
		d, ok := validDate(y, month, day, loc)
		if !ok {
			return time.Time{}, fmt.Errorf("invalid date %q", s)
		}
		return d, nil
	}

	start, end := r.window()

	var best time.Time
	var bestDist time.Duration
	for y := r.Now.Year() - 1; y <= r.Now.Year()+1; y++ {
		d, ok := validDate(y, month, day, loc)
		if !ok {
			continue
		}
		if !d.Before(start) && d.Before(end) {
			return d, nil
		}
		dist := absDuration(d.Sub(r.Now))
		if best.IsZero() || dist < bestDist {
			best, bestDist = d, dist
		}
	}
	if best.IsZero() {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return best, nil
}

func (r DeadlineResolver) window() (start, end time.Time) {
	start = r.Now.Add(-time.Duration(r.LookBehind * float64(year)))
	return start, start.Add(year)
}

// WindowKey identifies the dates partial deadlines can resolve to. Window
// membership only changes at midnight, so two resolvers with equal keys
// place every MM-DD in the same year. The day of Now is included for the
// nearest-date fallback used by 02-29.
func (r DeadlineResolver) WindowKey() string {
	start, end := r.window()
	return nextMidnight(start).Format(dateLayout) + ".." +
		nextMidnight(end).Format(dateLayout) + "@" + r.Now.Format(dateLayout)
}

// nextMidnight returns the first midnight at or after t.
func nextMidnight(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	if d.Before(t) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func validDate(y, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(y, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
