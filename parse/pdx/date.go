package pdx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidDate = errors.New("invalid date")

// Date is an in-game calendar date. Hour is zero for games whose dates
// have no hour component.
type Date struct {
	Year  int
	Month int
	Day   int
	Hour  int
}

// ParseDate accepts Y.M.D and Y.M.D.H.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 && len(parts) != 4 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	var nums [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}
	d := Date{Year: nums[0], Month: nums[1], Day: nums[2], Hour: nums[3]}
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 || d.Hour < 0 || d.Hour > 24 {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

func (d Date) String() string {
	if d.Hour != 0 {
		return fmt.Sprintf("%d.%d.%d.%d", d.Year, d.Month, d.Day, d.Hour)
	}
	return fmt.Sprintf("%d.%d.%d", d.Year, d.Month, d.Day)
}

func (d Date) IsZero() bool { return d == Date{} }

// Before orders dates chronologically.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	if d.Day != o.Day {
		return d.Day < o.Day
	}
	return d.Hour < o.Hour
}
