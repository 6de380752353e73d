// Package franchise maps franchise names to their Fangraphs team ids.
package franchise

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Franchise is one of the thirty current clubs. Name doubles as the stem
// of the franchise's data file.
type Franchise struct {
	Name   string `json:"name"`
	TeamID int    `json:"team_id"`
}

// ErrUnknownFranchise is returned for names outside the table
var ErrUnknownFranchise = errors.New("unknown franchise")

var teamIDs = map[string]int{
	"Angels":       1,
	"Astros":       21,
	"Athletics":    10,
	"Blue_Jays":    14,
	"Braves":       16,
	"Brewers":      23,
	"Cardinals":    28,
	"Cubs":         17,
	"Diamondbacks": 15,
	"Dodgers":      22,
	"Giants":       30,
	"Indians":      5,
	"Mariners":     11,
	"Marlins":      20,
	"Mets":         25,
	"Nationals":    24,
	"Orioles":      2,
	"Padres":       29,
	"Phillies":     26,
	"Pirates":      27,
	"Rangers":      13,
	"Rays":         12,
	"Red_Sox":      3,
	"Reds":         18,
	"Rockies":      19,
	"Royals":       7,
	"Tigers":       6,
	"Twins":        8,
	"White_Sox":    4,
	"Yankees":      9,
}

// Lookup resolves a franchise by name. Matching ignores case and accepts
// spaces in place of underscores ("red sox").
func Lookup(name string) (Franchise, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	for n, id := range teamIDs {
		if strings.EqualFold(n, norm) {
			return Franchise{Name: n, TeamID: id}, nil
		}
	}
	return Franchise{}, fmt.Errorf("%w %q", ErrUnknownFranchise, name)
}

// Names returns every franchise name in sorted order
func Names() []string {
	names := make([]string, 0, len(teamIDs))
	for n := range teamIDs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every franchise in name order
func All() []Franchise {
	names := Names()
	all := make([]Franchise, len(names))
	for i, n := range names {
		all[i] = Franchise{Name: n, TeamID: teamIDs[n]}
	}
	return all
}
