package aoi

import "strings"

// StatusAll disables status filtering.
const StatusAll = "all"

// Filter returns the AOIs whose name or change type contains query
// (case-insensitive) and whose status equals status. An empty query matches
// everything; status "all" or "" matches every status. Order is preserved.
func Filter(snapshot []*AOI, query, status string) []*AOI {
	q := strings.ToLower(query)
	out := make([]*AOI, 0, len(snapshot))
	for _, a := range snapshot {
		if status != "" && status != StatusAll && string(a.Status) != status {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(a.Name), q) &&
			!strings.Contains(strings.ToLower(string(a.ChangeType)), q) {
			continue
		}
		out = append(out, a)
	}
	return out
}
