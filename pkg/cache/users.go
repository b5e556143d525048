package cache

import (
	"context"

	"navportal/pkg/models"
)

// UsersKey holds the admin user list. Handlers resolve ids to usernames from
// it before user mutations.
const UsersKey = "users_list"

func (m *Manager) SetUsers(ctx context.Context, users []models.User) {
	m.Set(ctx, UsersKey, users, 0)
}

func (m *Manager) Users(ctx context.Context) ([]models.User, bool) {
	var out []models.User
	return out, m.Get(ctx, UsersKey, &out)
}

// User looks id up in the cached user list.
func (m *Manager) User(ctx context.Context, id int) (models.User, bool) {
	users, ok := m.Users(ctx)
	if !ok {
		return models.User{}, false
	}
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}
