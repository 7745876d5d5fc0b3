package store

// Entities are stored with integer primary keys; the HTTP boundary renders
// every id as a string (see BoardView).

type User struct {
	ID           int64
	Username     string
	PasswordHash string
}

type Board struct {
	ID     int64
	UserID int64
	Title  string
}

type Column struct {
	ID       int64
	BoardID  int64
	Title    string
	Position int
}

type Card struct {
	ID       int64
	ColumnID int64
	Title    string
	Details  string
	Position int
	Archived bool
}

// BoardView is the denormalized snapshot returned to callers.
type BoardView struct {
	Board   BoardInfo           `json:"board"`
	Columns []ColumnView        `json:"columns"`
	Cards   map[string]CardView `json:"cards"`
}

type BoardInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ColumnView struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Position int      `json:"position"`
	CardIDs  []string `json:"cardIds"`
}

type CardView struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Details string `json:"details"`
}
