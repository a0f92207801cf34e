package entity

import "time"

// Region is a crawl target. It mirrors the `areas` table.
type Region struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
