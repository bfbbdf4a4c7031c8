package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"aicv-backend/internal/shared/telemetry"
	"aicv-backend/internal/users"
)

var (
	ErrGoogleNotConfigured = errors.New("google auth not configured")
	ErrInvalidIDToken      = errors.New("invalid google id token")
	ErrInvalidState        = errors.New("invalid or expired oauth state")
)

const userInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// IDTokenValidator verifies a Google ID token for an audience.
type IDTokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// GoogleIdentity is the verified subset of a Google profile.
type GoogleIdentity struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleService signs users in with Google, either from a client-side ID
// token or through the OAuth code flow.
type GoogleService struct {
	oauthConfig *oauth2.Config
	uiRedirect  string
	stateTTL    time.Duration
	states      redis.UniversalClient
	users       *users.Service
	signer      TokenSigner
	validate    IDTokenValidator
	httpClient  *http.Client
	userInfoURL string
}

// NewGoogleService builds a GoogleService.
func NewGoogleService(clientID, clientSecret, redirectURL, uiRedirect string, states redis.UniversalClient, usersSvc *users.Service, signer TokenSigner) *GoogleService {
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		uiRedirect:  uiRedirect,
		stateTTL:    5 * time.Minute,
		states:      states,
		users:       usersSvc,
		signer:      signer,
		validate:    idtoken.Validate,
		userInfoURL: userInfoURL,
	}
}

// LoginWithIDToken verifies an ID token and issues a session token.
func (s *GoogleService) LoginWithIDToken(ctx context.Context, raw string) (LoginResult, GoogleIdentity, error) {
	if s.oauthConfig.ClientID == "" {
		return LoginResult{}, GoogleIdentity{}, ErrGoogleNotConfigured
	}
	payload, err := s.validate(ctx, raw, s.oauthConfig.ClientID)
	if err != nil {
		return LoginResult{}, GoogleIdentity{}, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}
	ident := identityFromClaims(payload.Subject, payload.Claims)
	if ident.Sub == "" {
		return LoginResult{}, GoogleIdentity{}, ErrInvalidIDToken
	}
	res, err := s.issue(ctx, ident)
	return res, ident, err
}

func (s *GoogleService) issue(ctx context.Context, ident GoogleIdentity) (LoginResult, error) {
	userID, err := s.users.LoginWithGoogle(ctx, ident.Sub, ident.Email, ident.Name, ident.Picture)
	if err != nil {
		return LoginResult{}, err
	}
	token, err := s.signer.Sign(userID, ident.Email)
	if err != nil {
		return LoginResult{}, err
	}
	telemetry.Info("google.login", map[string]any{"user_id": userID})
	return LoginResult{Token: token, UserID: userID, Contact: ident.Email, Type: users.ProviderGoogle}, nil
}

// StartURL stores a fresh state and returns the consent page URL.
func (s *GoogleService) StartURL(ctx context.Context) (string, error) {
	if s.oauthConfig.ClientID == "" || s.oauthConfig.ClientSecret == "" || s.oauthConfig.RedirectURL == "" {
		return "", ErrGoogleNotConfigured
	}
	state := uuid.NewString()
	if err := s.states.Set(ctx, stateKey(state), "1", s.stateTTL).Err(); err != nil {
		return "", fmt.Errorf("oauth: save state: %w", err)
	}
	return s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// Callback completes the code flow and returns the UI URL carrying the token.
func (s *GoogleService) Callback(ctx context.Context, state, code string) (string, error) {
	if state == "" || code == "" {
		return "", ErrInvalidState
	}
	n, err := s.states.Del(ctx, stateKey(state)).Result()
	if err != nil {
		return "", fmt.Errorf("oauth: consume state: %w", err)
	}
	if n == 0 {
		return "", ErrInvalidState
	}

	if s.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	}
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("oauth: exchange: %w", err)
	}
	ident, err := s.fetchUserInfo(ctx, token)
	if err != nil {
		return "", err
	}
	res, err := s.issue(ctx, ident)
	if err != nil {
		return "", err
	}
	return appendToken(s.uiRedirect, res.Token)
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (GoogleIdentity, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		return GoogleIdentity{}, fmt.Errorf("oauth: userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GoogleIdentity{}, fmt.Errorf("oauth: userinfo status %d", resp.StatusCode)
	}

	var info struct {
		GoogleIdentity
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return GoogleIdentity{}, fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	// v2 responses use "id" instead of "sub".
	if info.Sub == "" {
		info.Sub = info.ID
	}
	if info.Sub == "" {
		return GoogleIdentity{}, errors.New("oauth: userinfo without subject")
	}
	return info.GoogleIdentity, nil
}

func identityFromClaims(sub string, claims map[string]interface{}) GoogleIdentity {
	str := func(k string) string {
		v, _ := claims[k].(string)
		return strings.TrimSpace(v)
	}
	ident := GoogleIdentity{Sub: sub, Name: str("name"), Picture: str("picture")}
	if verified, _ := claims["email_verified"].(bool); verified {
		ident.Email = strings.ToLower(str("email"))
	}
	return ident
}

func stateKey(state string) string {
	return "oauth_state:" + state
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
