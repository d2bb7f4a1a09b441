package api

import (
	"context"
	"net/http"

	"github.com/mindhaven/companion/internal/domain"
)

type profileResponse struct {
	Data domain.Profile `json:"data"`
}

// OnboardingStatus reports where the user is in onboarding.
type OnboardingStatus struct {
	CompletedOnboarding bool `json:"completedOnboarding"`
	CurrentStep         int  `json:"currentStep"`
}

// Profile fetches the user's profile.
func (c *Client) Profile(ctx context.Context) (domain.Profile, error) {
	var resp profileResponse
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &resp); err != nil {
		return domain.Profile{}, err
	}
	return resp.Data, nil
}

// UpdateProfile replaces the user's profile.
func (c *Client) UpdateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	var resp profileResponse
	if err := c.do(ctx, http.MethodPut, "/profile", p, &resp); err != nil {
		return domain.Profile{}, err
	}
	return resp.Data, nil
}

// GetOnboardingStatus fetches the onboarding progress.
func (c *Client) GetOnboardingStatus(ctx context.Context) (OnboardingStatus, error) {
	var resp OnboardingStatus
	if err := c.do(ctx, http.MethodGet, "/onboarding/status", nil, &resp); err != nil {
		return OnboardingStatus{}, err
	}
	return resp, nil
}
