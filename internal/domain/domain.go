package domain

import "time"

type Feed struct {
	URL   string
	Title string
}

type UserFeed struct {
	ID     int64
	UserID int64
	URL    string
	Title  string
}

// Article is a journal feed item together with its classification.
type Article struct {
	Title     string
	URL       string
	Abstract  string
	FeedID    int64
	FeedTitle string
	FeedURL   string
	Category  string
	Failed    bool
}

type UserSettings struct {
	UserID            int64
	AutoDigestHourUTC int64
}

// Classification is one recorded classification attempt. It never carries the
// credential or the abstract itself.
type Classification struct {
	ID             int64     `json:"id"`
	Source         string    `json:"source"`
	UserID         int64     `json:"user_id,omitempty"`
	AbstractSHA256 string    `json:"abstract_sha256"`
	AbstractLen    int       `json:"abstract_len"`
	Category       string    `json:"category,omitempty"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	CreatedAt      time.Time `json:"created_at"`
}
