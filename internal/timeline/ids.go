package timeline

import "strings"

// CompareIDs orders server-assigned status ids. Ids are opaque strings, but
// snowflake ids of different widths must order numerically, so a longer id is
// always the newer one and equal widths compare bytewise.
func CompareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
