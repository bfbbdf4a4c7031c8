package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"aicv-backend/internal/shared/telemetry"
	"aicv-backend/internal/shared/util"
	"aicv-backend/internal/users"
)

var (
	ErrContactRequired = errors.New("email or phone is required")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrCaptchaRequired = errors.New("captcha is required")
	ErrCaptchaExpired  = errors.New("captcha expired or never sent")
	ErrCaptchaInvalid  = errors.New("captcha does not match")
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
)

// ParseContact validates the login contact. Email wins when both are given.
func ParseContact(email, phone string) (string, users.Provider, error) {
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	switch {
	case email == "" && phone == "":
		return "", "", ErrContactRequired
	case email != "":
		if !emailPattern.MatchString(email) {
			return "", "", ErrInvalidEmail
		}
		return strings.ToLower(email), users.ProviderEmail, nil
	default:
		if !phonePattern.MatchString(phone) {
			return "", "", ErrInvalidPhone
		}
		return phone, users.ProviderPhone, nil
	}
}

// consumeCode deletes the stored code only when it matches. Returns -1 when
// no code is stored, 0 on mismatch and 1 on success.
var consumeCode = redis.NewScript(`
local stored = redis.call('GET', KEYS[1])
if not stored then
	return -1
end
if stored ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

func captchaKey(contact string) string {
	return "captcha:" + contact
}

// CodeStore keeps one pending code per contact with an expiry.
type CodeStore struct {
	rdb redis.UniversalClient
}

func NewCodeStore(rdb redis.UniversalClient) *CodeStore {
	return &CodeStore{rdb: rdb}
}

// Save replaces any pending code for the contact.
func (s *CodeStore) Save(ctx context.Context, contact, code string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, captchaKey(contact), code, ttl).Err(); err != nil {
		return fmt.Errorf("captcha: save: %w", err)
	}
	return nil
}

// Consume checks code against the pending one and removes it on success.
func (s *CodeStore) Consume(ctx context.Context, contact, code string) error {
	n, err := consumeCode.Run(ctx, s.rdb, []string{captchaKey(contact)}, code).Int()
	if err != nil {
		return fmt.Errorf("captcha: consume: %w", err)
	}
	switch n {
	case -1:
		return ErrCaptchaExpired
	case 0:
		return ErrCaptchaInvalid
	default:
		return nil
	}
}

// TokenSigner issues session tokens.
type TokenSigner interface {
	Sign(userID, contact string) (string, error)
}

// CaptchaService runs the passwordless one-time-code login.
type CaptchaService struct {
	Codes    *CodeStore
	Mailer   Mailer
	Users    *users.Service
	Signer   TokenSigner
	TTL      time.Duration
	EchoCode bool

	generate func() (string, error)
}

// SendResult reports a dispatched code. Code is set only when echoing is enabled.
type SendResult struct {
	Contact string
	Type    users.Provider
	Code    string
}

// LoginResult carries the issued session.
type LoginResult struct {
	Token   string
	UserID  string
	Contact string
	Type    users.Provider
}

// Send stores a fresh code for the contact and delivers it.
func (s *CaptchaService) Send(ctx context.Context, email, phone string) (SendResult, error) {
	contact, kind, err := ParseContact(email, phone)
	if err != nil {
		return SendResult{}, err
	}
	gen := s.generate
	if gen == nil {
		gen = generateCode
	}
	code, err := gen()
	if err != nil {
		return SendResult{}, err
	}
	if err := s.Codes.Save(ctx, contact, code, s.TTL); err != nil {
		return SendResult{}, err
	}

	switch kind {
	case users.ProviderEmail:
		if err := s.Mailer.SendCode(ctx, contact, code, s.TTL); err != nil {
			return SendResult{}, fmt.Errorf("captcha: deliver: %w", err)
		}
	default:
		telemetry.Info("captcha.sms_not_configured", map[string]any{"contact": util.Fingerprint(contact)})
	}

	telemetry.Info("captcha.sent", map[string]any{"contact": util.Fingerprint(contact), "type": string(kind)})
	res := SendResult{Contact: contact, Type: kind}
	if s.EchoCode {
		res.Code = code
	}
	return res, nil
}

// Login exchanges a valid code for a session token.
func (s *CaptchaService) Login(ctx context.Context, email, phone, code string) (LoginResult, error) {
	contact, kind, err := ParseContact(email, phone)
	if err != nil {
		return LoginResult{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return LoginResult{}, ErrCaptchaRequired
	}
	if err := s.Codes.Consume(ctx, contact, code); err != nil {
		return LoginResult{}, err
	}

	userID, err := s.Users.LoginWithContact(ctx, contact, kind)
	if err != nil {
		return LoginResult{}, err
	}
	token, err := s.Signer.Sign(userID, contact)
	if err != nil {
		return LoginResult{}, err
	}
	telemetry.Info("captcha.login", map[string]any{"user_id": userID, "type": string(kind)})
	return LoginResult{Token: token, UserID: userID, Contact: contact, Type: kind}, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
