// Package auth provides bcrypt password handling, HS256 token issuance and
// the signup/login flows over the users collection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	contractx "github.com/shoptalklabs/shoptalk/agent/contract"
	storex "github.com/shoptalklabs/shoptalk/pkg/store"
)

const CollectionUsers = "users"

var (
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

type Config struct {
	Secret   string        `envconfig:"SECRET" required:"true"`
	TokenTTL time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
}

// Claims holds the typed JWT payload.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Account is the password-free projection of a user document returned to
// callers of Signup and Login.
type Account struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Service struct {
	cfg   Config
	store storex.Store
	now   func() time.Time
}

func NewService(cfg Config, st storex.Store) *Service {
	return &Service{cfg: cfg, store: st, now: time.Now}
}

// HashPassword returns a bcrypt hash of the plain-text password.
func HashPassword(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a bcrypt hash against the plain-text candidate.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Signup registers a new user with the "user" role. Email is the uniqueness
// key; the stored password is the bcrypt hash, never the plain text.
func (s *Service) Signup(ctx context.Context, name, email, password string) (Account, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" || email == "" || password == "" {
		return Account{}, fmt.Errorf("%w: name, email and password are required", contractx.ErrValidation)
	}

	existing, err := s.store.Find(ctx, CollectionUsers, storex.Doc{"email": email}, nil)
	if err != nil {
		return Account{}, err
	}
	if len(existing) > 0 {
		return Account{}, ErrEmailTaken
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return Account{}, err
	}

	id, err := s.store.InsertOne(ctx, CollectionUsers, storex.Stamp(storex.Doc{
		"name":     name,
		"email":    email,
		"password": hashed,
		"role":     string(contractx.RoleUser),
	}, s.now()))
	if err != nil {
		return Account{}, err
	}

	return Account{ID: id, Name: name, Email: email, Role: string(contractx.RoleUser)}, nil
}

// Login verifies credentials and issues a signed token. An unknown email and
// a wrong password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	users, err := s.store.Find(ctx, CollectionUsers, storex.Doc{"email": email}, nil)
	if err != nil {
		return "", Account{}, err
	}
	if len(users) == 0 {
		return "", Account{}, ErrInvalidCredentials
	}

	user := users[0]
	hash, _ := user["password"].(string)
	if !CheckPassword(hash, password) {
		return "", Account{}, ErrInvalidCredentials
	}

	account := accountFromDoc(user)
	token, err := s.GenerateToken(account)
	if err != nil {
		return "", Account{}, err
	}
	return token, account, nil
}

// GenerateToken signs a JWT carrying the account identity and role.
func (s *Service) GenerateToken(account Account) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: account.ID,
		Email:  account.Email,
		Role:   account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
}

// ParseToken validates a token string and returns its claims.
func (s *Service) ParseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Caller converts validated claims into the identity the agent layer runs
// under. Unrecognized roles fall back to "user".
func (c *Claims) Caller() contractx.Caller {
	return contractx.Caller{ID: c.UserID, Email: c.Email, Role: contractx.ParseRole(c.Role)}
}

func accountFromDoc(doc storex.Doc) Account {
	acc := Account{}
	acc.ID, _ = doc["_id"].(string)
	acc.Name, _ = doc["name"].(string)
	acc.Email, _ = doc["email"].(string)
	acc.Role, _ = doc["role"].(string)
	if acc.Role == "" {
		acc.Role = string(contractx.RoleUser)
	}
	return acc
}
