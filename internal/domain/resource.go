package domain

// Resource is an entry in the content library.
type Resource struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Summary     string   `json:"summary,omitempty"`
	Content     string   `json:"content,omitempty"`
	ReadingTime int      `json:"readingTime,omitempty"` // minutes
	Tags        []string `json:"tags,omitempty"`
}
