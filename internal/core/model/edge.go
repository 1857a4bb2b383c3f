package model

import "time"

// EdgeTypeHasIngredient links a recipe to one of its item nodes.
const EdgeTypeHasIngredient = "has_ingredient"

type Edge struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	FromID     string                 `json:"from_id"`
	ToID       string                 `json:"to_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}
