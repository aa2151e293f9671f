package timeline

import (
	"fmt"
	"time"
)

// RelativeTime renders the age of a post: the wall clock time within the
// first hour, then whole hours, then whole days (both rounded up), and the
// date in dateLayout after a week.
func RelativeTime(published, now time.Time, dateLayout string) string {
	local := published.In(now.Location())
	age := now.Sub(published)
	switch {
	case age < time.Hour:
		return fmt.Sprintf("%d:%02d", local.Hour(), local.Minute())
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", ceilDiv(age, time.Hour))
	case age < 7*24*time.Hour:
		return fmt.Sprintf("%dd", ceilDiv(age, 24*time.Hour))
	}
	return local.Format(dateLayout)
}

func ceilDiv(d, unit time.Duration) int64 {
	n := d / unit
	if d%unit != 0 {
		n++
	}
	return int64(n)
}
