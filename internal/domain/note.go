package domain

// MaxNotes is the capacity of the board. When exceeded, the oldest notes
// (by creation order) are evicted first.
const MaxNotes = 1000

// Note is one sticky note on the shared surface.
//
// ID is assigned at creation and never reassigned. AuthorID and Author are
// immutable after creation; only the session whose identity matches AuthorID
// may move or remove the note. Drawing is an opaque encoded raster payload.
type Note struct {
	ID          string  `json:"id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Content     string  `json:"content,omitempty"`
	Drawing     string  `json:"drawing,omitempty"`
	Color       string  `json:"color,omitempty"`
	AuthorID    string  `json:"authorId"`
	Author      string  `json:"author"`
	Rotation    float64 `json:"rotation"`
	CreatedAt   int64   `json:"createdAt"`
	LastUpdated int64   `json:"lastUpdated"`
}
