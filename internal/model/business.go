package model

import "time"

// Business is a discovered real-world company candidate. Only existence
// and counts matter to progress accounting; contact fields are carried
// for downstream consumers.
type Business struct {
	ID          string    `json:"id,omitempty"`
	SearchID    string    `json:"search_id,omitempty"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Website     string    `json:"website,omitempty"`
	Country     string    `json:"country"`
	Industry    string    `json:"industry,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	Departments []string  `json:"departments,omitempty"`
	Products    []string  `json:"products,omitempty"`
	Activities  []string  `json:"activities,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// DecisionMaker is a person identified at a discovered business.
type DecisionMaker struct {
	ID           string    `json:"id,omitempty"`
	SearchID     string    `json:"search_id,omitempty"`
	BusinessName string    `json:"business_name"`
	Name         string    `json:"name,omitempty"`
	Title        string    `json:"title"`
	ProfileURL   string    `json:"profile_url,omitempty"`
	Snippet      string    `json:"snippet,omitempty"`
	Country      string    `json:"country,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}
