package api

import (
	"context"
	"net/http"

	"github.com/mindhaven/companion/internal/domain"
)

type goalsResponse struct {
	Data  []domain.Goal `json:"data"`
	Count int           `json:"count"`
}

type goalResponse struct {
	Data    domain.Goal `json:"data"`
	Message string      `json:"message"`
}

type recommendationsResponse struct {
	Data  []string `json:"data"`
	Count int      `json:"count"`
}

// DailyGoals returns the goals for today.
func (c *Client) DailyGoals(ctx context.Context) ([]domain.Goal, error) {
	var resp goalsResponse
	if err := c.do(ctx, http.MethodGet, "/goals/daily", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CreateGoal adds a new daily goal.
func (c *Client) CreateGoal(ctx context.Context, goal string) (domain.Goal, error) {
	var resp goalResponse
	req := map[string]string{"goal": goal}
	if err := c.do(ctx, http.MethodPost, "/goals", req, &resp); err != nil {
		return domain.Goal{}, err
	}
	return resp.Data, nil
}

// CompleteGoal marks a goal as done.
func (c *Client) CompleteGoal(ctx context.Context, id string) (domain.Goal, error) {
	var resp goalResponse
	if err := c.do(ctx, http.MethodPatch, "/goals/"+id+"/complete", nil, &resp); err != nil {
		return domain.Goal{}, err
	}
	return resp.Data, nil
}

// DeleteGoal removes a goal.
func (c *Client) DeleteGoal(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/goals/"+id, nil, nil)
}

// GoalRecommendations returns suggested goal texts.
func (c *Client) GoalRecommendations(ctx context.Context) ([]string, error) {
	var resp recommendationsResponse
	if err := c.do(ctx, http.MethodGet, "/goals/recommendations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
