package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"backend-nlmap/internal/logging"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	stateTTL   = 10 * time.Minute
	pendingTTL = 15 * time.Minute
)

var (
	ErrInvalidState     = errors.New("sign-in state invalid or expired")
	ErrPendingInvalid   = errors.New("pending sign-in invalid or already used")
	ErrUsernameRequired = errors.New("username required")
	ErrFederatedOff     = errors.New("federated sign-in not configured")
	ErrProvider         = errors.New("identity provider request failed")
	ErrEmailUnverified  = errors.New("provider email is not verified")
	ErrEmailInUse       = errors.New("email already belongs to another account")
)

// Federated runs the Google sign-in flow. Single-use state and pending
// sign-ins live in Redis so any instance can finish a flow another began.
type Federated struct {
	svc         *Service
	oauth       *oauth2.Config
	rdb         *redis.Client
	userInfoURL string
	logger      *zap.Logger
}

func GoogleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email"},
		Endpoint:     google.Endpoint,
	}
}

func NewFederated(svc *Service, oauthCfg *oauth2.Config, rdb *redis.Client, userInfoURL string, logger *zap.Logger) *Federated {
	if userInfoURL == "" {
		userInfoURL = GoogleUserInfoURL
	}
	return &Federated{
		svc:         svc,
		oauth:       oauthCfg,
		rdb:         rdb,
		userInfoURL: userInfoURL,
		logger:      logging.OrNop(logger),
	}
}

func (f *Federated) enabled() bool {
	return f != nil && f.oauth != nil && f.oauth.ClientID != "" && f.rdb != nil
}

// LoginURL starts a sign-in. The PKCE verifier is stored under the state.
func (f *Federated) LoginURL(ctx context.Context) (string, error) {
	if !f.enabled() {
		return "", ErrFederatedOff
	}
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	if err := f.rdb.Set(ctx, stateKey(state), verifier, stateTTL).Err(); err != nil {
		return "", err
	}
	return f.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Callback finishes the provider round trip. A returning user gets tokens;
// a first-time user gets exactly one profile prompt for this sign-in.
func (f *Federated) Callback(ctx context.Context, state, code string) (FederatedResult, error) {
	if !f.enabled() {
		return FederatedResult{}, ErrFederatedOff
	}
	verifier, err := f.rdb.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return FederatedResult{}, ErrInvalidState
	}
	if err != nil {
		return FederatedResult{}, err
	}

	token, err := f.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return FederatedResult{}, fmt.Errorf("%w: exchange code: %v", ErrProvider, err)
	}
	identity, err := f.fetchIdentity(ctx, token)
	if err != nil {
		return FederatedResult{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	if !identity.EmailVerified {
		return FederatedResult{}, ErrEmailUnverified
	}

	user, err := f.svc.federatedUser(ctx, ProviderGoogle, identity.Subject)
	if err == nil {
		tokens, err := f.svc.GenerateTokens(ctx, user.ID)
		if err != nil {
			return FederatedResult{}, err
		}
		return FederatedResult{User: &user, Tokens: &tokens}, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return FederatedResult{}, err
	}

	// Accounts are never linked by email.
	if _, err := f.svc.userBy(ctx, "email", identity.Email); err == nil {
		return FederatedResult{}, ErrEmailInUse
	} else if !errors.Is(err, ErrUserNotFound) {
		return FederatedResult{}, err
	}

	pending := uuid.NewString()
	raw, err := json.Marshal(identity)
	if err != nil {
		return FederatedResult{}, err
	}
	if err := f.rdb.Set(ctx, pendingKey(pending), raw, pendingTTL).Err(); err != nil {
		return FederatedResult{}, err
	}
	f.logger.Info("federated sign-in needs profile", zap.String("email", identity.Email))
	return FederatedResult{ProfileRequired: true, PendingToken: pending}, nil
}

// Complete consumes a pending sign-in and creates its profile.
func (f *Federated) Complete(ctx context.Context, req CompleteProfileRequest) (User, TokenResponse, error) {
	if !f.enabled() {
		return User{}, TokenResponse{}, ErrFederatedOff
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return User{}, TokenResponse{}, ErrUsernameRequired
	}

	raw, err := f.rdb.GetDel(ctx, pendingKey(req.PendingToken)).Bytes()
	if errors.Is(err, redis.Nil) {
		return User{}, TokenResponse{}, ErrPendingInvalid
	}
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	var identity pendingIdentity
	if err := json.Unmarshal(raw, &identity); err != nil {
		return User{}, TokenResponse{}, ErrPendingInvalid
	}

	user, err := f.svc.createUser(ctx, User{
		Email:           identity.Email,
		Username:        username,
		Provider:        ProviderGoogle,
		ProviderSubject: identity.Subject,
	})
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	tokens, err := f.svc.GenerateTokens(ctx, user.ID)
	if err != nil {
		return User{}, TokenResponse{}, err
	}
	return user, tokens, nil
}

func (f *Federated) fetchIdentity(ctx context.Context, token *oauth2.Token) (pendingIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.userInfoURL, nil)
	if err != nil {
		return pendingIdentity{}, err
	}
	resp, err := f.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return pendingIdentity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return pendingIdentity{}, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}

	var identity pendingIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return pendingIdentity{}, err
	}
	if identity.Subject == "" || identity.Email == "" {
		return pendingIdentity{}, errors.New("userinfo: sub or email missing")
	}
	return identity, nil
}

func stateKey(state string) string {
	return "nlmap:oauth:state:" + state
}

func pendingKey(token string) string {
	return "nlmap:oauth:pending:" + token
}
