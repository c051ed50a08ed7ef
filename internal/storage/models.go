package storage

import "time"

// Object is the metadata row kept for every stored blob.
type Object struct {
	ID      string     `json:"id"`
	UserID  string     `json:"user_id"`
	URL     string     `json:"url"`
	Kind    string     `json:"kind"`
	Path    string     `json:"path"`
	Size    int64      `json:"size"`
	TakenAt *time.Time `json:"taken_at,omitempty"`
}
