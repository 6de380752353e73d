package models

// SeasonRecord is one row of a player's career history: the team he played
// for in a given season. Season is a year, optionally suffixed with a
// lowercase letter when the player had several stints that season.
type SeasonRecord struct {
	PlayerID string `json:"player_id"`
	TeamID   int    `json:"team_id"`
	Team     string `json:"team"`
	Season   string `json:"season"`
}

// Candidate is a player eligible for a franchise rotation
type Candidate struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value"`
	// Index is the dense solver position, assigned per solve
	Index int `json:"-"`
}

// CandidateIDs returns the ids in pool order
func CandidateIDs(candidates []Candidate) []string {
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}
