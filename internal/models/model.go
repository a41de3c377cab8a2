package models

// User is a provisioned identity. AuthToken is only populated while the
// store compares credentials and is never serialised.
type User struct {
	ID          int64  `json:"id"`
	AuthToken   string `json:"-"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

// PublicProfile holds the non-secret attributes of a user.
type PublicProfile struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
	HasContent  bool   `json:"has_content"`
}

// Content is the current shareable text of one owner. Empty is set when the
// owner exists but has never published anything.
type Content struct {
	OwnerID   int64
	Text      string
	UpdatedAt int64
	Empty     bool
}
