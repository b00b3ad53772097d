// Package lifetime parses lifetime strings like "30", "15m" or "1M".
//
// A string of digits only is a number of seconds. Otherwise the last letter selects the unit
// and the rest must be an integer:
//
//	s  second
//	m  minute
//	h  hour
//	d  day
//	M  month (30 days)
//	y  year (365 days)
package lifetime

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/nkiryanov/authkeeper/internal/apperrors"
)

const day = 24 * 60 * 60

var multipliers = map[byte]int64{
	's': 1,
	'm': 60,
	'h': 60 * 60,
	'd': day,
	'M': 30 * day,
	'y': 365 * day,
}

// Seconds converts lifetime string to seconds
func Seconds(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: empty value", apperrors.ErrInvalidDuration)
	}

	if isDigits(value) {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", apperrors.ErrInvalidDuration, value)
		}
		return n, nil
	}

	unit := value[len(value)-1]
	multiplier, ok := multipliers[unit]
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q in %q", apperrors.ErrInvalidDuration, string(unit), value)
	}

	n, err := strconv.ParseInt(value[:len(value)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", apperrors.ErrInvalidDuration, value)
	}
	if n < 0 || n > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("%w: %q out of range", apperrors.ErrInvalidDuration, value)
	}

	return n * multiplier, nil
}

// Duration is the same as Seconds but returns time.Duration
func Duration(value string) (time.Duration, error) {
	s, err := Seconds(value)
	if err != nil {
		return 0, err
	}
	if s > math.MaxInt64/int64(time.Second) {
		return 0, fmt.Errorf("%w: %q does not fit into time.Duration", apperrors.ErrInvalidDuration, value)
	}
	return time.Duration(s) * time.Second, nil
}

func isDigits(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
