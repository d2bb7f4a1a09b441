// Package domain contains core domain types for the companion client.
package domain

import "time"

// CheckInStep is a single step of a guided mood check-in.
type CheckInStep struct {
	Step  int    `json:"step"`
	Mood  int    `json:"mood"`
	Notes string `json:"notes,omitempty"`
}

// CheckIn is one day's mood check-in.
type CheckIn struct {
	ID          string        `json:"id"`
	UserID      string        `json:"userId"`
	Date        string        `json:"date"` // YYYY-MM-DD
	Steps       []CheckInStep `json:"steps"`
	OverallMood int           `json:"overallMood,omitempty"`
	Completed   bool          `json:"completed"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// AverageMood returns the mean mood across recorded steps, 0 when empty.
func (c *CheckIn) AverageMood() float64 {
	if len(c.Steps) == 0 {
		return 0
	}
	sum := 0
	for _, s := range c.Steps {
		sum += s.Mood
	}
	return float64(sum) / float64(len(c.Steps))
}

// IsToday reports whether the check-in belongs to the given day.
func (c *CheckIn) IsToday(now time.Time) bool {
	return c.Date == now.Format("2006-01-02")
}
