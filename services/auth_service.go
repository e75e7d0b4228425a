package services

import (
	"context"
	stderrors "errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/its-tarun-2505/Trashure/auth"
	"github.com/its-tarun-2505/Trashure/cache"
	"github.com/its-tarun-2505/Trashure/logging"
	"github.com/its-tarun-2505/Trashure/models"
	"github.com/its-tarun-2505/Trashure/store"
	"github.com/its-tarun-2505/Trashure/utils/errors"
)

var (
	emailRe     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe     = regexp.MustCompile(`^\d{7,15}$`)
	phoneStrip  = regexp.MustCompile(`[\s\-()]`)
	minPassword = 8
)

type AuthService struct {
	users    store.Users
	cache    cache.Users
	codec    *auth.Codec
	log      logging.Logger
	now      func() time.Time
	hashCost int
}

func NewAuthService(users store.Users, c cache.Users, codec *auth.Codec, log logging.Logger) *AuthService {
	return &AuthService{
		users:    users,
		cache:    c,
		codec:    codec,
		log:      log,
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
}

// WithHashCost sets the bcrypt cost for new password hashes. Values outside
// bcrypt's range fall back to the default.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	s.hashCost = cost
	return s
}

type RegisterInput struct {
	Role      string   `json:"role"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Address   string   `json:"address"`
	Password  string   `json:"password"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool { return emailRe.MatchString(email) }

func validPhone(phone string) bool { return phoneRe.MatchString(phoneStrip.ReplaceAllString(phone, "")) }

// ValidateCoordinates checks that both are present and in range.
func ValidateCoordinates(lat, lng *float64) error {
	if lat == nil || lng == nil {
		return errors.Validation("latitude and longitude are required for collectors")
	}
	if *lat < -90 || *lat > 90 {
		return errors.Validation("latitude must be between -90 and 90")
	}
	if *lng < -180 || *lng > 180 {
		return errors.Validation("longitude must be between -180 and 180")
	}
	return nil
}

// Register creates a citizen or collector account. Admins are provisioned
// out of band.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	role, err := models.ParseRole(in.Role)
	if err != nil || role == models.RoleAdmin {
		return nil, errors.Validation("role must be citizen or collector")
	}
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	phone := strings.TrimSpace(in.Phone)
	address := strings.TrimSpace(in.Address)
	if name == "" || email == "" || phone == "" || address == "" || in.Password == "" {
		return nil, errors.Validation("all fields are required")
	}
	if !validEmail(email) {
		return nil, errors.Validation("invalid email")
	}
	if !validPhone(phone) {
		return nil, errors.Validation("enter a valid phone number (7-15 digits)")
	}
	if len(in.Password) < minPassword {
		return nil, errors.Validation("password must be at least 8 characters")
	}

	user := &models.User{
		Role:    role,
		Name:    name,
		Email:   email,
		Phone:   phone,
		Address: address,
	}
	if role == models.RoleCollector {
		if err := ValidateCoordinates(in.Latitude, in.Longitude); err != nil {
			return nil, err
		}
		user.Latitude, user.Longitude = in.Latitude, in.Longitude
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, errors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}
	user.PasswordHash = string(hash)
	now := s.now()
	user.CreatedAt, user.UpdatedAt = now, now

	if err := s.users.Create(ctx, user); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil, errors.Conflict("email already in use")
		}
		return nil, errors.Wrap(err, "DB_ERROR", "failed to create user in database", http.StatusInternalServerError)
	}
	if err := s.cache.Set(ctx, user); err != nil {
		s.log.Warn(ctx, "cache user failed", "user", user.ID.Hex(), "error", err)
	}
	s.log.Info(ctx, "user registered", "user", user.ID.Hex(), "role", role)
	return user, nil
}

// Login checks credentials and the requested role, returning the user and
// a signed session token.
func (s *AuthService) Login(ctx context.Context, email, password, role string) (*models.User, string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" || strings.TrimSpace(role) == "" {
		return nil, "", errors.Validation("role, email and password are required")
	}
	requested, err := models.ParseRole(role)
	if err != nil {
		return nil, "", errors.Validation("unknown role")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, store.ErrNotFound) {
			return nil, "", errors.ErrInvalidCredential
		}
		return nil, "", errors.Wrap(err, "DB_ERROR", "failed to load user", http.StatusInternalServerError)
	}
	if user.Role != requested {
		return nil, "", errors.Forbidden("role does not match account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", errors.ErrInvalidCredential
	}

	token, err := s.codec.Sign(auth.Claims{
		Role:             user.Role,
		Email:            user.Email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID.Hex()},
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "JWT_ERROR", "failed to generate token", http.StatusInternalServerError)
	}
	if err := s.cache.Set(ctx, user); err != nil {
		s.log.Warn(ctx, "cache user failed", "user", user.ID.Hex(), "error", err)
	}
	return user, token, nil
}

// TokenTTL is the lifetime of issued session tokens.
func (s *AuthService) TokenTTL() time.Duration { return s.codec.TTL() }
