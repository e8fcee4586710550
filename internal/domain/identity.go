package domain

// Identity is a resolved user identity. The login flow lives outside this
// engine; sessions only ever receive an already-resolved {id, name} pair.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
