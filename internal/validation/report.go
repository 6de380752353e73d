package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/stitts-dev/rotation-optimizer/internal/models"
)

// Adjacency answers whether two players were teammates
type Adjacency interface {
	Adjacent(a, b string) bool
}

// Report is the outcome of comparing one franchise's rotation
type Report struct {
	Franchise      string   `json:"franchise"`
	ExactMatch     bool     `json:"exact_match"`
	Errors         []string `json:"errors,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	PredictedTotal float64  `json:"predicted_total"`
	ReferenceTotal float64  `json:"reference_total"`
	TotalsMatch    bool     `json:"totals_match"`
}

// OK reports a clean pass: no errors and matching totals
func (r *Report) OK() bool {
	return len(r.Errors) == 0 && r.TotalsMatch
}

// Compare checks a solution against its reference rotation. Cardinality
// mismatches and teammates in the solution are errors; differing player
// sets are warnings. The predicted total is rounded to one decimal place
// and compared with the reference sum as is.
func Compare(franchise string, sol *models.Solution, ref []ReferencePick, adj Adjacency) *Report {
	report := &Report{
		Franchise:      franchise,
		PredictedTotal: round1(sol.Total),
		ReferenceTotal: Total(ref),
	}
	report.TotalsMatch = math.Abs(report.PredictedTotal-report.ReferenceTotal) < totalTol
	if !report.TotalsMatch {
		report.Warnings = append(report.Warnings, fmt.Sprintf(
			"value totals do not match: predicted %.1f, expected %g", report.PredictedTotal, report.ReferenceTotal))
	}

	if samePicks(sol.Picks, ref) {
		report.ExactMatch = true
		return report
	}

	if len(sol.Picks) != len(ref) {
		report.Errors = append(report.Errors, fmt.Sprintf("rotation has %d players, not %d", len(sol.Picks), len(ref)))
	}
	for i := range sol.Picks {
		for j := i + 1; j < len(sol.Picks); j++ {
			a, b := sol.Picks[i].ID, sol.Picks[j].ID
			if adj.Adjacent(a, b) {
				report.Errors = append(report.Errors, fmt.Sprintf("found teammates: %s and %s", a, b))
			}
		}
	}

	predicted := make(map[string]bool, len(sol.Picks))
	for _, p := range sol.Picks {
		predicted[p.ID] = true
	}
	expected := make(map[string]bool, len(ref))
	for _, r := range ref {
		expected[string(r.ID)] = true
	}
	if extra := missingFrom(predicted, expected); len(extra) > 0 {
		report.Warnings = append(report.Warnings,
			"predicted players not in the reference: "+strings.Join(extra, ", "))
	}
	if missed := missingFrom(expected, predicted); len(missed) > 0 {
		report.Warnings = append(report.Warnings,
			"reference players not predicted: "+strings.Join(missed, ", "))
	}
	return report
}

// samePicks compares in order, id and value, like the reference lists
func samePicks(picks []models.Pick, ref []ReferencePick) bool {
	if len(picks) != len(ref) {
		return false
	}
	for i := range picks {
		if picks[i].ID != string(ref[i].ID) || round1(picks[i].Value) != round1(ref[i].War) {
			return false
		}
	}
	return true
}

// missingFrom lists keys of a that are not in b, sorted
func missingFrom(a, b map[string]bool) []string {
	var out []string
	for id := range a {
		if !b[id] {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// totalTol absorbs float error in the reference sum
const totalTol = 1e-9

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
