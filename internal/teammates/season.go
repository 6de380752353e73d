package teammates

import (
	"fmt"
	"sort"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
)

// MaxStints bounds how many times a season can be split. Suffixes are a
// single letter, so a 27th stint has no label.
const MaxStints = 26

// Tenure is the set of season labels a player spent with one franchise
type Tenure map[string]struct{}

// NewTenure builds a tenure set from labels
func NewTenure(labels ...string) Tenure {
	t := make(Tenure, len(labels))
	for _, l := range labels {
		t[l] = struct{}{}
	}
	return t
}

// Has reports whether the label is in the set
func (t Tenure) Has(label string) bool {
	_, ok := t[label]
	return ok
}

// Labels returns the labels in sorted order
func (t Tenure) Labels() []string {
	labels := make([]string, 0, len(t))
	for l := range t {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// isPartial reports whether the label carries a stint suffix (2002a)
func isPartial(label string) bool {
	if label == "" {
		return false
	}
	last := label[len(label)-1]
	return last >= 'a' && last <= 'z'
}

// validLabel accepts a run of digits optionally followed by one lowercase letter
func validLabel(label string) bool {
	if label == "" {
		return false
	}
	digits := label
	if isPartial(label) {
		digits = label[:len(label)-1]
	}
	if digits == "" {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

// SplitSeasons relabels the seasons a player appears in more than once.
// Duplicates of "2002" become "2002a", "2002b", ... in their original order.
// The input slice is not modified.
func SplitSeasons(records []models.SeasonRecord) ([]models.SeasonRecord, error) {
	counts := make(map[string]int, len(records))
	for _, r := range records {
		if !validLabel(r.Season) {
			return nil, integrityError(r.PlayerID, fmt.Sprintf("malformed season label %q", r.Season), nil)
		}
		counts[r.Season]++
	}

	out := make([]models.SeasonRecord, len(records))
	seen := make(map[string]int, len(counts))
	for i, r := range records {
		out[i] = r
		n := counts[r.Season]
		if n == 1 {
			continue
		}
		if isPartial(r.Season) {
			return nil, integrityError(r.PlayerID, fmt.Sprintf("season %q listed %d times", r.Season, n), nil)
		}
		if n > MaxStints {
			return nil, integrityError(r.PlayerID, fmt.Sprintf("season %s split into %d stints, at most %d supported", r.Season, n, MaxStints), nil)
		}
		out[i].Season = r.Season + string(rune('a'+seen[r.Season]))
		seen[r.Season]++
	}

	// A pre-split label can collide with a freshly generated one
	labels := make(map[string]struct{}, len(out))
	for _, r := range out {
		if _, dup := labels[r.Season]; dup {
			return nil, integrityError(r.PlayerID, fmt.Sprintf("season label %q is ambiguous", r.Season), nil)
		}
		labels[r.Season] = struct{}{}
	}

	return out, nil
}

// TenureFor splits the player's seasons and keeps the ones spent with teamID
func TenureFor(playerID string, records []models.SeasonRecord, teamID int) (Tenure, error) {
	if len(records) == 0 {
		return nil, integrityError(playerID, "no season history", nil)
	}

	split, err := SplitSeasons(records)
	if err != nil {
		return nil, err
	}

	tenure := make(Tenure)
	for _, r := range split {
		if r.TeamID == teamID {
			tenure[r.Season] = struct{}{}
		}
	}
	if len(tenure) == 0 {
		return nil, integrityError(playerID, fmt.Sprintf("no seasons with team %d", teamID), nil)
	}

	return tenure, nil
}

// Overlaps reports whether two tenure sets share time on the roster.
// A full season contains every partial season of the same year, so full and
// partial labels are matched on the base year as well as verbatim.
func Overlaps(a, b Tenure) bool {
	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}

	for season := range shorter {
		if longer.Has(season) {
			return true
		}
		if isPartial(season) {
			// Other side played the whole year
			if longer.Has(season[:len(season)-1]) {
				return true
			}
			continue
		}
		for cand := range longer {
			if isPartial(cand) && cand[:len(cand)-1] == season {
				return true
			}
		}
	}

	return false
}
