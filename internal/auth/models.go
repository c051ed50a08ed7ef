package auth

import "time"

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Provider     string    `json:"provider"`
	CreatedAt    time.Time `json:"created_at"`

	// ProviderSubject is the federated provider's id for this identity.
	ProviderSubject string `json:"-"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// FederatedResult is the outcome of a provider callback. Either the user
// already has a profile and receives tokens, or ProfileRequired is set and
// PendingToken must be completed with a username.
type FederatedResult struct {
	ProfileRequired bool           `json:"profile_required"`
	PendingToken    string         `json:"pending_token,omitempty"`
	User            *User          `json:"user,omitempty"`
	Tokens          *TokenResponse `json:"tokens,omitempty"`
}

type CompleteProfileRequest struct {
	PendingToken string `json:"pending_token"`
	Username     string `json:"username"`
}

type pendingIdentity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}
