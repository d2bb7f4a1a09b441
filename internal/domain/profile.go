package domain

// Profile is the user's companion profile.
type Profile struct {
	UserID         string   `json:"userId"`
	Name           string   `json:"name"`
	Email          string   `json:"email,omitempty"`
	AvatarURL      string   `json:"avatarUrl,omitempty"`
	Struggles      []string `json:"struggles,omitempty"`
	StruggleNotes  string   `json:"struggleNotes,omitempty"`
	InTherapy      bool     `json:"inTherapy"`
	TherapyDetails string   `json:"therapyDetails,omitempty"`
}
