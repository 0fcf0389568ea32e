package ledger

import "sort"

// CrosswalkEntry maps a source entity key onto the target coding scheme.
type CrosswalkEntry struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Resolve left-joins records against the crosswalk on Entity and sets Target. Rows
// without a match are kept with a nil Target so their amounts stay visible. A source key
// listed more than once fans the row out once per target; callers are expected to catch
// that upstream with DuplicateSources.
func Resolve(records []Record, entries []CrosswalkEntry) []Record {
	targets := make(map[string][]string, len(entries))
	for _, e := range entries {
		targets[e.Source] = append(targets[e.Source], e.Target)
	}

	out := make([]Record, 0, len(records))
	for _, r := range records {
		matches := targets[r.Entity]
		if len(matches) == 0 {
			row := r.Clone()
			row.Target = nil
			out = append(out, row)
			continue
		}
		for _, t := range matches {
			row := r.Clone()
			target := t
			row.Target = &target
			out = append(out, row)
		}
	}
	return out
}

// DuplicateSources lists source keys that map to more than one row of the crosswalk.
func DuplicateSources(entries []CrosswalkEntry) []string {
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		seen[e.Source]++
	}
	var dups []string
	for source, n := range seen {
		if n > 1 {
			dups = append(dups, source)
		}
	}
	sort.Strings(dups)
	return dups
}
