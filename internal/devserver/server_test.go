package devserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mindhaven/companion/internal/api"
	"github.com/mindhaven/companion/internal/domain"
)

func newTestClient(t *testing.T, userID string) (*api.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(NewServer(NewCannedResponder()).Router())
	t.Cleanup(srv.Close)

	client := api.NewClient(api.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	client.SetUserID(userID)
	return client, srv
}

func TestServer_GoalLifecycle(t *testing.T) {
	client, _ := newTestClient(t, "user-a")
	ctx := context.Background()

	goal, err := client.CreateGoal(ctx, "take a walk")
	if err != nil {
		t.Fatalf("CreateGoal error: %v", err)
	}
	if goal.ID == "" || goal.Goal != "take a walk" || goal.Completed {
		t.Errorf("Unexpected goal: %+v", goal)
	}

	daily, err := client.DailyGoals(ctx)
	if err != nil {
		t.Fatalf("DailyGoals error: %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("Expected 1 daily goal, got %d", len(daily))
	}

	done, err := client.CompleteGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("CompleteGoal error: %v", err)
	}
	if !done.Completed || done.CompletedAt == nil {
		t.Errorf("Expected completed goal, got %+v", done)
	}

	if err := client.DeleteGoal(ctx, goal.ID); err != nil {
		t.Fatalf("DeleteGoal error: %v", err)
	}
	daily, err = client.DailyGoals(ctx)
	if err != nil {
		t.Fatalf("DailyGoals error: %v", err)
	}
	if len(daily) != 0 {
		t.Errorf("Expected no goals after delete, got %d", len(daily))
	}
}

func TestServer_CompleteUnknownGoalIsNotFound(t *testing.T) {
	client, _ := newTestClient(t, "user-a")

	_, err := client.CompleteGoal(context.Background(), "nope")
	if !api.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestServer_CheckInTodayAndHistory(t *testing.T) {
	client, _ := newTestClient(t, "user-a")
	ctx := context.Background()

	today, err := client.TodayCheckIn(ctx)
	if err != nil {
		t.Fatalf("TodayCheckIn error: %v", err)
	}
	if today != nil {
		t.Fatalf("Expected no check-in yet, got %+v", today)
	}

	created, err := client.CreateCheckIn(ctx, api.CreateCheckInRequest{
		Steps: []domain.CheckInStep{
			{Step: 1, Mood: 3},
			{Step: 2, Mood: 4, Notes: "slept better"},
		},
		Completed: true,
	})
	if err != nil {
		t.Fatalf("CreateCheckIn error: %v", err)
	}
	if created.UserID != "user-a" || !created.Completed {
		t.Errorf("Unexpected check-in: %+v", created)
	}

	today, err = client.TodayCheckIn(ctx)
	if err != nil {
		t.Fatalf("TodayCheckIn error: %v", err)
	}
	if today == nil || today.ID != created.ID {
		t.Errorf("Expected today's check-in %s, got %+v", created.ID, today)
	}

	// Resubmitting the same day replaces rather than duplicates.
	if _, err := client.CreateCheckIn(ctx, api.CreateCheckInRequest{Completed: true}); err != nil {
		t.Fatalf("CreateCheckIn error: %v", err)
	}
	history, err := client.CheckInHistory(ctx)
	if err != nil {
		t.Fatalf("CheckInHistory error: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Expected 1 check-in after resubmit, got %d", len(history))
	}
}

func TestServer_ProfileDrivesOnboarding(t *testing.T) {
	client, _ := newTestClient(t, "user-a")
	ctx := context.Background()

	status, err := client.GetOnboardingStatus(ctx)
	if err != nil {
		t.Fatalf("GetOnboardingStatus error: %v", err)
	}
	if status.CompletedOnboarding {
		t.Error("Expected onboarding incomplete for a new user")
	}

	profile, err := client.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile error: %v", err)
	}
	profile.Name = "Alex"
	profile.Struggles = []string{"anxiety"}
	if _, err := client.UpdateProfile(ctx, profile); err != nil {
		t.Fatalf("UpdateProfile error: %v", err)
	}

	status, err = client.GetOnboardingStatus(ctx)
	if err != nil {
		t.Fatalf("GetOnboardingStatus error: %v", err)
	}
	if !status.CompletedOnboarding {
		t.Error("Expected onboarding complete after profile update")
	}

	profile, err = client.Profile(ctx)
	if err != nil {
		t.Fatalf("Profile error: %v", err)
	}
	if profile.Name != "Alex" {
		t.Errorf("Expected updated name, got %q", profile.Name)
	}
}

func TestServer_ResourcesCategoryFilter(t *testing.T) {
	client, _ := newTestClient(t, "user-a")
	ctx := context.Background()

	all, err := client.Resources(ctx, "")
	if err != nil {
		t.Fatalf("Resources error: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("Expected seeded resources")
	}

	anxiety, err := client.Resources(ctx, "anxiety")
	if err != nil {
		t.Fatalf("Resources error: %v", err)
	}
	if len(anxiety) == 0 || len(anxiety) >= len(all) {
		t.Errorf("Expected a strict subset for anxiety, got %d of %d", len(anxiety), len(all))
	}
	for _, res := range anxiety {
		if res.Category != "anxiety" {
			t.Errorf("Unexpected category %q for %s", res.Category, res.ID)
		}
	}

	categories, err := client.ResourceCategories(ctx)
	if err != nil {
		t.Fatalf("ResourceCategories error: %v", err)
	}
	if len(categories) < 2 {
		t.Errorf("Expected multiple categories, got %v", categories)
	}

	one, err := client.Resource(ctx, all[0].ID)
	if err != nil {
		t.Fatalf("Resource error: %v", err)
	}
	if one.Content == "" {
		t.Error("Expected resource content")
	}

	_, err = client.Resource(ctx, "missing")
	if !api.IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestServer_StateIsScopedPerUser(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewCannedResponder()).Router())
	defer srv.Close()

	clientA := api.NewClient(api.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	clientA.SetUserID("user-a")
	clientB := api.NewClient(api.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	clientB.SetUserID("user-b")

	ctx := context.Background()
	if _, err := clientA.CreateGoal(ctx, "journal tonight"); err != nil {
		t.Fatalf("CreateGoal error: %v", err)
	}

	goalsB, err := clientB.DailyGoals(ctx)
	if err != nil {
		t.Fatalf("DailyGoals error: %v", err)
	}
	if len(goalsB) != 0 {
		t.Errorf("Expected user-b to have no goals, got %d", len(goalsB))
	}
}

func TestCannedResponder_Rotates(t *testing.T) {
	responder := NewCannedResponder()

	first := responder.Reply(context.Background(), nil)
	second := responder.Reply(context.Background(), nil)
	if first == second {
		t.Errorf("Expected rotation, got %q twice", first)
	}
}
