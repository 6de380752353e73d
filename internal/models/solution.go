package models

import (
	"time"

	"github.com/google/uuid"
)

// Pick is one selected player and the value he contributes
type Pick struct {
	ID    string  `json:"id"`
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"war"`
}

// Solution is the outcome of a single rotation solve
type Solution struct {
	ID        uuid.UUID     `json:"id"`
	Picks     []Pick        `json:"picks"`
	Total     float64       `json:"total"`
	Size      int           `json:"size"`
	PoolSize  int           `json:"pool_size"`
	Encoding  string        `json:"encoding"`
	Status    string        `json:"status"`
	Warnings  []string      `json:"warnings,omitempty"`
	Nodes     int           `json:"nodes,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"created_at"`
}

// PickIDs returns the selected ids in solution order
func (s *Solution) PickIDs() []string {
	ids := make([]string, len(s.Picks))
	for i, p := range s.Picks {
		ids[i] = p.ID
	}
	return ids
}

// PickTotal sums the values of the picks
func (s *Solution) PickTotal() float64 {
	total := 0.0
	for _, p := range s.Picks {
		total += p.Value
	}
	return total
}
