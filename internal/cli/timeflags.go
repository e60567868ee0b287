package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// endOfTime is the upper bound of an open-ended window.
var endOfTime = time.UnixMilli(math.MaxInt64).UTC()

// parseTimeOr parses an RFC 3339 time or a unix millisecond count. An empty
// string yields def.
func parseTimeOr(s string, def time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither RFC 3339 nor unix milliseconds", s)
	}
	return t, nil
}

// parseGroup splits "stream=name1,name2" into the output stream name and
// the notification names it collects.
func parseGroup(s string) (string, []string, error) {
	stream, list, ok := strings.Cut(s, "=")
	stream = strings.TrimSpace(stream)
	if !ok || stream == "" {
		return "", nil, fmt.Errorf("group %q: expected stream=name1,name2", s)
	}
	var names []string
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return stream, names, nil
}
