package api

import (
	"context"
	"net/http"

	"github.com/mindhaven/companion/internal/domain"
)

// CreateCheckInRequest is the payload for a new daily check-in.
type CreateCheckInRequest struct {
	Date        string               `json:"date"`
	Steps       []domain.CheckInStep `json:"steps"`
	OverallMood int                  `json:"overallMood,omitempty"`
	Completed   bool                 `json:"completed"`
}

type checkInResponse struct {
	Data domain.CheckIn `json:"data"`
}

type checkInHistoryResponse struct {
	Data  []domain.CheckIn `json:"data"`
	Count int              `json:"count"`
}

// CreateCheckIn records a daily check-in.
func (c *Client) CreateCheckIn(ctx context.Context, req CreateCheckInRequest) (domain.CheckIn, error) {
	var resp checkInResponse
	if err := c.do(ctx, http.MethodPost, "/check-ins", req, &resp); err != nil {
		return domain.CheckIn{}, err
	}
	return resp.Data, nil
}

// TodayCheckIn returns today's check-in, or nil when none exists yet.
func (c *Client) TodayCheckIn(ctx context.Context) (*domain.CheckIn, error) {
	var resp checkInResponse
	err := c.do(ctx, http.MethodGet, "/check-ins/today", nil, &resp)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// CheckInHistory returns prior check-ins, newest first.
func (c *Client) CheckInHistory(ctx context.Context) ([]domain.CheckIn, error) {
	var resp checkInHistoryResponse
	if err := c.do(ctx, http.MethodGet, "/check-ins", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
