package taskguard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Day is the length of the "d" duration unit.
const Day = 24 * time.Hour

var (
	durationPattern = regexp.MustCompile(`^(?:\d+(?:\.\d+)?(?:ms|s|m|h|d))+$`)
	segmentPattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)(ms|s|m|h|d)`)
	numericPattern  = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)

	durationUnits = map[string]time.Duration{
		"ms": time.Millisecond,
		"s":  time.Second,
		"m":  time.Minute,
		"h":  time.Hour,
		"d":  Day,
	}
)

// ParseDuration resolves a human-readable duration.
//
// Integers and floats are millisecond counts. Strings combine one or more
// <number><unit> segments with units ms, s, m, h or d (e.g. "1h30m"); a bare
// numeric string is a millisecond count. Negative values resolve to their absolute
// value. An unparseable value resolves to 0 and logs a warning.
func ParseDuration(v any) time.Duration {
	return ParseDurationWithLogger(v, slog.Default())
}

// ParseDurationWithLogger is ParseDuration reporting parse failures to logger.
func ParseDurationWithLogger(v any, logger *slog.Logger) time.Duration {
	switch d := v.(type) {
	case nil:
		return 0
	case time.Duration:
		return absDuration(d)
	case Duration:
		return absDuration(time.Duration(d))
	case int:
		return millis(float64(d))
	case int32:
		return millis(float64(d))
	case int64:
		return millis(float64(d))
	case uint:
		return millis(float64(d))
	case uint32:
		return millis(float64(d))
	case uint64:
		return millis(float64(d))
	case float32:
		return millis(float64(d))
	case float64:
		return millis(d)
	case string:
		if parsed, ok := parseDurationString(d); ok {
			return parsed
		}
		logger.Warn("unable to parse duration, using 0", "value", d)
		return 0
	default:
		logger.Warn("unsupported duration type, using 0", "type", fmt.Sprintf("%T", v))
		return 0
	}
}

func parseDurationString(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if numericPattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return millis(f), true
	}
	if !durationPattern.MatchString(s) {
		return 0, false
	}

	var total time.Duration
	for _, m := range segmentPattern.FindAllStringSubmatch(s, -1) {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		total += time.Duration(n * float64(durationUnits[m[2]]))
	}
	return total, true
}

func millis(f float64) time.Duration {
	return time.Duration(math.Abs(f) * float64(time.Millisecond))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Duration is a time.Duration that decodes from the ParseDuration formats in
// JSON documents and text configuration.
type Duration time.Duration

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, ok := parseDurationString(string(text))
	if !ok {
		return fmt.Errorf("invalid duration %q", string(text))
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON accepts either a millisecond number or a duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(millis(v))
		return nil
	case string:
		return d.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

// MarshalJSON encodes the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
