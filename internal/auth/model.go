package auth

import "time"

// Account roles. New registrations start as staff and stay pending until an
// admin approves them.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Account statuses. Only active accounts may log in.
const (
	StatusActive  = "active"
	StatusPaused  = "paused"
	StatusPending = "pending"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult is returned to the client on successful authentication.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserView  `json:"user"`
	IssuedAt    time.Time `json:"-"`
}

// UserView is the sanitized user shape embedded in API responses.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Status   string `json:"status,omitempty"`
}

func (u User) View() UserView {
	return UserView{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Status:   u.Status,
	}
}
