// Package devserver is an in-memory stand-in for the companion backend,
// used for local development and integration tests.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/mindhaven/companion/internal/chat"
	"github.com/mindhaven/companion/internal/domain"
)

// userState holds everything the backend tracks for one user.
type userState struct {
	conversation []chat.Message
	checkIns     []domain.CheckIn
	goals        []domain.Goal
	profile      domain.Profile
	onboarded    bool
}

// Server serves the companion REST API and the realtime chat endpoint
// from process memory. State is scoped per X-User-ID.
type Server struct {
	mu        sync.Mutex
	users     map[string]*userState
	resources []domain.Resource
	responder Responder
}

// NewServer creates a dev backend answering chat with the given responder.
func NewServer(responder Responder) *Server {
	if responder == nil {
		responder = NewCannedResponder()
	}
	return &Server{
		users:     make(map[string]*userState),
		resources: seedResources(),
		responder: responder,
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(cors)

	r.Get("/chat/conversation", s.handleConversation)
	r.Delete("/chat/clear-conversation", s.handleClearConversation)

	r.Post("/check-ins", s.handleCreateCheckIn)
	r.Get("/check-ins", s.handleCheckInHistory)
	r.Get("/check-ins/today", s.handleTodayCheckIn)

	r.Get("/goals/daily", s.handleDailyGoals)
	r.Post("/goals", s.handleCreateGoal)
	r.Patch("/goals/{id}/complete", s.handleCompleteGoal)
	r.Delete("/goals/{id}", s.handleDeleteGoal)
	r.Get("/goals/recommendations", s.handleGoalRecommendations)

	r.Get("/profile", s.handleGetProfile)
	r.Put("/profile", s.handleUpdateProfile)
	r.Get("/onboarding/status", s.handleOnboardingStatus)

	r.Get("/resources", s.handleResources)
	r.Get("/resources/categories", s.handleResourceCategories)
	r.Get("/resources/{id}", s.handleResource)

	r.Get("/ws", s.handleWebSocket)

	return r
}

// cors echoes permissive headers for local development clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func userIDFromRequest(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("userId")
}

// state returns the per-user bucket, creating it on first contact.
// Caller must hold s.mu.
func (s *Server) state(userID string) *userState {
	st, ok := s.users[userID]
	if !ok {
		st = &userState{
			profile: domain.Profile{UserID: userID, Name: "Friend"},
		}
		s.users[userID] = st
	}
	return st
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	s.mu.Lock()
	st := s.state(userID)
	msgs := make([]chat.Message, len(st.conversation))
	copy(msgs, st.conversation)
	s.mu.Unlock()

	JSON(w, http.StatusOK, map[string]interface{}{"data": msgs, "count": len(msgs)})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	s.mu.Lock()
	s.state(userID).conversation = nil
	s.mu.Unlock()

	JSON(w, http.StatusOK, map[string]string{"message": "conversation cleared"})
}

func (s *Server) handleCreateCheckIn(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	var req struct {
		Date        string               `json:"date"`
		Steps       []domain.CheckInStep `json:"steps"`
		OverallMood int                  `json:"overallMood"`
		Completed   bool                 `json:"completed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	now := time.Now()
	checkIn := domain.CheckIn{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        req.Date,
		Steps:       req.Steps,
		OverallMood: req.OverallMood,
		Completed:   req.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	st := s.state(userID)
	// One check-in per day; a resubmission replaces it.
	replaced := false
	for i := range st.checkIns {
		if st.checkIns[i].Date == req.Date {
			checkIn.ID = st.checkIns[i].ID
			checkIn.CreatedAt = st.checkIns[i].CreatedAt
			st.checkIns[i] = checkIn
			replaced = true
			break
		}
	}
	if !replaced {
		st.checkIns = append(st.checkIns, checkIn)
	}
	s.mu.Unlock()

	JSON(w, http.StatusCreated, map[string]interface{}{"data": checkIn})
}

func (s *Server) handleCheckInHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	s.mu.Lock()
	st := s.state(userID)
	history := make([]domain.CheckIn, len(st.checkIns))
	copy(history, st.checkIns)
	s.mu.Unlock()

	// Newest first.
	sort.Slice(history, func(i, j int) bool { return history[i].Date > history[j].Date })

	JSON(w, http.StatusOK, map[string]interface{}{"data": history, "count": len(history)})
}

func (s *Server) handleTodayCheckIn(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	today := time.Now().Format("2006-01-02")

	s.mu.Lock()
	st := s.state(userID)
	var found *domain.CheckIn
	for i := range st.checkIns {
		if st.checkIns[i].Date == today {
			c := st.checkIns[i]
			found = &c
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		Error(w, http.StatusNotFound, "no check-in recorded today")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"data": found})
}

func (s *Server) handleDailyGoals(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	today := time.Now().Format("2006-01-02")

	s.mu.Lock()
	st := s.state(userID)
	goals := make([]domain.Goal, 0, len(st.goals))
	for _, g := range st.goals {
		if g.CreatedAt.Format("2006-01-02") == today {
			goals = append(goals, g)
		}
	}
	s.mu.Unlock()

	JSON(w, http.StatusOK, map[string]interface{}{"data": goals, "count": len(goals)})
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	var req struct {
		Goal string `json:"goal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Goal = strings.TrimSpace(req.Goal)
	if req.Goal == "" {
		Error(w, http.StatusBadRequest, "goal text cannot be empty")
		return
	}

	now := time.Now()
	goal := domain.Goal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Goal:      req.Goal,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	st := s.state(userID)
	st.goals = append(st.goals, goal)
	s.mu.Unlock()

	JSON(w, http.StatusCreated, map[string]interface{}{"data": goal, "message": "goal created"})
}

func (s *Server) handleCompleteGoal(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}
	goalID := chi.URLParam(r, "id")

	s.mu.Lock()
	st := s.state(userID)
	var updated *domain.Goal
	for i := range st.goals {
		if st.goals[i].ID == goalID {
			st.goals[i].MarkCompleted(time.Now())
			g := st.goals[i]
			updated = &g
			break
		}
	}
	s.mu.Unlock()

	if updated == nil {
		Error(w, http.StatusNotFound, fmt.Sprintf("goal %s not found", goalID))
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"data": updated, "message": "goal completed"})
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}
	goalID := chi.URLParam(r, "id")

	s.mu.Lock()
	st := s.state(userID)
	idx := -1
	for i := range st.goals {
		if st.goals[i].ID == goalID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		st.goals = append(st.goals[:idx], st.goals[idx+1:]...)
	}
	s.mu.Unlock()

	if idx < 0 {
		Error(w, http.StatusNotFound, fmt.Sprintf("goal %s not found", goalID))
		return
	}
	JSON(w, http.StatusOK, map[string]string{"message": "goal deleted"})
}

var goalRecommendations = []string{
	"Take a 10 minute walk outside",
	"Write down three things you are grateful for",
	"Drink a glass of water when you wake up",
	"Reach out to a friend you haven't spoken to in a while",
	"Spend five minutes on a breathing exercise",
	"Go to bed 30 minutes earlier tonight",
}

func (s *Server) handleGoalRecommendations(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{
		"data":  goalRecommendations,
		"count": len(goalRecommendations),
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	s.mu.Lock()
	profile := s.state(userID).profile
	s.mu.Unlock()

	JSON(w, http.StatusOK, map[string]interface{}{"data": profile})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	var profile domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	profile.UserID = userID

	s.mu.Lock()
	st := s.state(userID)
	st.profile = profile
	st.onboarded = true
	s.mu.Unlock()

	JSON(w, http.StatusOK, map[string]interface{}{"data": profile})
}

func (s *Server) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromRequest(r)
	if userID == "" {
		Error(w, http.StatusUnauthorized, "missing user id")
		return
	}

	s.mu.Lock()
	onboarded := s.state(userID).onboarded
	s.mu.Unlock()

	step := 0
	if onboarded {
		step = 3
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"completedOnboarding": onboarded,
		"currentStep":         step,
	})
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	out := make([]domain.Resource, 0, len(s.resources))
	for _, res := range s.resources {
		if category != "" && res.Category != category {
			continue
		}
		out = append(out, res)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"data": out, "count": len(out)})
}

func (s *Server) handleResourceCategories(w http.ResponseWriter, r *http.Request) {
	seen := make(map[string]bool)
	categories := make([]string, 0)
	for _, res := range s.resources {
		if !seen[res.Category] {
			seen[res.Category] = true
			categories = append(categories, res.Category)
		}
	}
	sort.Strings(categories)

	JSON(w, http.StatusOK, map[string]interface{}{"data": categories})
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, res := range s.resources {
		if res.ID == id {
			JSON(w, http.StatusOK, map[string]interface{}{"data": res})
			return
		}
	}
	Error(w, http.StatusNotFound, fmt.Sprintf("resource %s not found", id))
}

func seedResources() []domain.Resource {
	return []domain.Resource{
		{
			ID:          "grounding-5-4-3-2-1",
			Title:       "The 5-4-3-2-1 Grounding Technique",
			Category:    "anxiety",
			Summary:     "A sensory exercise for interrupting spiraling thoughts.",
			Content:     "Name five things you can see, four you can touch, three you can hear, two you can smell, and one you can taste.",
			ReadingTime: 3,
			Tags:        []string{"grounding", "panic"},
		},
		{
			ID:          "box-breathing",
			Title:       "Box Breathing Basics",
			Category:    "anxiety",
			Summary:     "Slow, even breathing to calm the nervous system.",
			Content:     "Inhale for four counts, hold for four, exhale for four, hold for four. Repeat for a few minutes.",
			ReadingTime: 2,
			Tags:        []string{"breathing"},
		},
		{
			ID:          "sleep-hygiene",
			Title:       "Building Better Sleep Habits",
			Category:    "sleep",
			Summary:     "Small routine changes that improve sleep quality.",
			Content:     "Keep consistent sleep and wake times, dim screens an hour before bed, and keep the bedroom cool and dark.",
			ReadingTime: 5,
			Tags:        []string{"routine"},
		},
		{
			ID:          "behavioral-activation",
			Title:       "Getting Moving When Motivation Is Low",
			Category:    "depression",
			Summary:     "Why action tends to come before motivation, not after.",
			Content:     "Pick the smallest possible version of an activity you used to enjoy and schedule it. Momentum builds from doing, not waiting.",
			ReadingTime: 6,
			Tags:        []string{"activation", "routine"},
		},
	}
}
