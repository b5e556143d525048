package models

type Website struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	URL         string     `json:"url"`
	Description string     `json:"description,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Category    string     `json:"category,omitempty"`
	CategoryID  *int       `json:"category_id,omitempty"`
	Position    int        `json:"position"`
	IsActive    bool       `json:"is_active"`
	UserID      *int       `json:"user_id,omitempty"`
	Public      *bool      `json:"public,omitempty"`
	CreatedAt   Timestamp  `json:"created_at"`
	UpdatedAt   *Timestamp `json:"updated_at,omitempty"`
}

// Initial is the fallback glyph shown when a website has no icon.
func (w Website) Initial() string {
	for _, r := range w.Name {
		return string(r)
	}
	return "?"
}

// WebsiteInput is the body of create and update calls. Nil fields are left
// out so PUT only touches what was set.
type WebsiteInput struct {
	Name        *string `json:"name,omitempty"`
	URL         *string `json:"url,omitempty"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Category    *string `json:"category,omitempty"`
	CategoryID  *int    `json:"category_id,omitempty"`
	Position    *int    `json:"position,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
	Public      *bool   `json:"public,omitempty"`
}

type UserWebsiteOrder struct {
	UserID    int `json:"user_id"`
	WebsiteID int `json:"website_id"`
	Position  int `json:"position"`
}
