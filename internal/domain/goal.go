package domain

import "time"

// Goal is a user-defined daily goal.
type Goal struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Goal        string     `json:"goal"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// MarkCompleted flags the goal as done at the given time.
func (g *Goal) MarkCompleted(now time.Time) {
	g.Completed = true
	g.CompletedAt = &now
	g.UpdatedAt = now
}

// MarkOpen reverts a completed goal.
func (g *Goal) MarkOpen(now time.Time) {
	g.Completed = false
	g.CompletedAt = nil
	g.UpdatedAt = now
}
