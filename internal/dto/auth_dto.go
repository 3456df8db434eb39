package dto

// RegisterRequest creates an account. With a JoinCode the user joins that
// team as secretaria; without one a new team is created with the user as
// its doctor.
type RegisterRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	JoinCode string `json:"join_code,omitempty" form:"join_code"`
	TeamName string `json:"team_name,omitempty" form:"team_name"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// SessionLoginRequest exchanges an identity-provider ID token for a session.
type SessionLoginRequest struct {
	IDToken  string `json:"idToken" form:"idToken"`
	JoinCode string `json:"join_code,omitempty" form:"join_code"`
	TeamName string `json:"team_name,omitempty" form:"team_name"`
}

type AuthResponse struct {
	SessionToken string       `json:"session_token"`
	ExpiresAt    int64        `json:"expires_at"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	TeamID string `json:"team_id"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Cache     string `json:"cache"`
	Remote    string `json:"remote"`
	Camera    any    `json:"camera"`
}
