package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

func newProviderServer(t *testing.T, identity pendingIdentity) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" || r.Form.Get("code_verifier") == "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"provider-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(identity)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFederated(t *testing.T, mock pgxmock.PgxPoolIface, email string) (*Federated, *miniredis.Miniredis) {
	t.Helper()
	return newTestFederatedAs(t, mock, pendingIdentity{Subject: "google-1", Email: email, EmailVerified: true})
}

func newTestFederatedAs(t *testing.T, mock pgxmock.PgxPoolIface, identity pendingIdentity) (*Federated, *miniredis.Miniredis) {
	t.Helper()
	provider := newProviderServer(t, identity)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/auth/google/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  provider.URL + "/auth",
			TokenURL: provider.URL + "/token",
		},
	}
	return NewFederated(NewService("test-secret", mock), cfg, rdb, provider.URL+"/userinfo", nil), mr
}

func startSignIn(t *testing.T, fed *Federated) string {
	t.Helper()
	raw, err := fed.LoginURL(context.Background())
	if err != nil {
		t.Fatalf("login url: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if u.Query().Get("code_challenge") == "" {
		t.Fatalf("expected pkce challenge in %s", raw)
	}
	return u.Query().Get("state")
}

func TestFederatedNewUserPromptsOnce(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	fed, _ := newTestFederated(t, mock, "new@example.com")
	state := startSignIn(t, fed)

	expectNoSubject(mock, "google-1")
	mock.ExpectQuery(`WHERE email = \$1`).
		WithArgs("new@example.com").
		WillReturnError(pgx.ErrNoRows)

	result, err := fed.Callback(context.Background(), state, "good-code")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !result.ProfileRequired || result.PendingToken == "" || result.Tokens != nil {
		t.Fatalf("expected profile prompt, got %+v", result)
	}

	if _, err := fed.Callback(context.Background(), state, "good-code"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected replayed state to be rejected, got %v", err)
	}

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "new@example.com", "newbie", "", "google", "google-1").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	user, tokens, err := fed.Complete(context.Background(), CompleteProfileRequest{PendingToken: result.PendingToken, Username: " newbie "})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if user.Provider != ProviderGoogle || user.Username != "newbie" || tokens.AccessToken == "" {
		t.Fatalf("unexpected completion: %+v %+v", user, tokens)
	}

	if _, _, err := fed.Complete(context.Background(), CompleteProfileRequest{PendingToken: result.PendingToken, Username: "newbie"}); !errors.Is(err, ErrPendingInvalid) {
		t.Fatalf("expected consumed pending token, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFederatedReturningUserGetsTokens(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	// The account was created under an older address; the subject still matches.
	fed, _ := newTestFederated(t, mock, "renamed@example.com")
	state := startSignIn(t, fed)

	mock.ExpectQuery(`WHERE provider = \$1 AND provider_subject = \$2`).
		WithArgs("google", "google-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "provider", "created_at"}).
			AddRow("user-9", "known@example.com", "known", "", "google", time.Now()))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), "user-9", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	result, err := fed.Callback(context.Background(), state, "good-code")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}
	if result.ProfileRequired || result.Tokens == nil || result.User.ID != "user-9" {
		t.Fatalf("expected tokens, got %+v", result)
	}
}

func TestFederatedPendingExpires(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	fed, mr := newTestFederated(t, mock, "late@example.com")
	state := startSignIn(t, fed)

	expectNoSubject(mock, "google-1")
	mock.ExpectQuery(`WHERE email = \$1`).
		WithArgs("late@example.com").
		WillReturnError(pgx.ErrNoRows)

	result, err := fed.Callback(context.Background(), state, "good-code")
	if err != nil {
		t.Fatalf("callback: %v", err)
	}

	mr.FastForward(pendingTTL + time.Second)
	if _, _, err := fed.Complete(context.Background(), CompleteProfileRequest{PendingToken: result.PendingToken, Username: "late"}); !errors.Is(err, ErrPendingInvalid) {
		t.Fatalf("expected expired pending token, got %v", err)
	}
}

func TestFederatedCallbackBadCode(t *testing.T) {
	fed, _ := newTestFederated(t, nil, "x@example.com")
	state := startSignIn(t, fed)

	if _, err := fed.Callback(context.Background(), state, "bad-code"); !errors.Is(err, ErrProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestFederatedCompleteRequiresUsername(t *testing.T) {
	fed, _ := newTestFederated(t, nil, "x@example.com")
	if _, _, err := fed.Complete(context.Background(), CompleteProfileRequest{PendingToken: "p", Username: "  "}); !errors.Is(err, ErrUsernameRequired) {
		t.Fatalf("expected username error, got %v", err)
	}
}

func TestFederatedDisabled(t *testing.T) {
	fed := NewFederated(NewService("secret", nil), GoogleConfig("", "", ""), nil, "", nil)
	if _, err := fed.LoginURL(context.Background()); !errors.Is(err, ErrFederatedOff) {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func expectNoSubject(mock pgxmock.PgxPoolIface, subject string) {
	mock.ExpectQuery(`WHERE provider = \$1 AND provider_subject = \$2`).
		WithArgs("google", subject).
		WillReturnError(pgx.ErrNoRows)
}

func TestFederatedDoesNotLinkPasswordAccountByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	fed, mr := newTestFederatedAs(t, mock, pendingIdentity{Subject: "google-77", Email: "victim@example.com", EmailVerified: true})
	state := startSignIn(t, fed)

	expectNoSubject(mock, "google-77")
	mock.ExpectQuery(`WHERE email = \$1`).
		WithArgs("victim@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email", "username", "password_hash", "provider", "created_at"}).
			AddRow("user-1", "victim@example.com", "victim", "hash", "password", time.Now()))

	result, err := fed.Callback(context.Background(), state, "good-code")
	if !errors.Is(err, ErrEmailInUse) {
		t.Fatalf("expected email in use, got %v", err)
	}
	if result.Tokens != nil || result.PendingToken != "" {
		t.Fatalf("expected no tokens and no pending sign-in, got %+v", result)
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("expected no pending keys, got %v", keys)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFederatedRejectsUnverifiedEmail(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	fed, _ := newTestFederatedAs(t, mock, pendingIdentity{Subject: "google-5", Email: "someone@example.com"})
	state := startSignIn(t, fed)

	if _, err := fed.Callback(context.Background(), state, "good-code"); !errors.Is(err, ErrEmailUnverified) {
		t.Fatalf("expected unverified email error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no queries expected: %v", err)
	}
}
