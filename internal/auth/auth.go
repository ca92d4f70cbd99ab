package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-shop-api.git/internal/errs"
	"github.com/ariefcatur/go-shop-api.git/internal/redisx"
)

const (
	RoleAdmin    = "admin"
	RoleVendor   = "vendor"
	RoleCustomer = "customer"
)

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is the caller's resolved user id and role. The core services are
// role-agnostic; the HTTP layer enforces role and ownership with this.
type Identity struct {
	UserID string
	Role   string
}

type Service struct {
	DB       *pgxpool.Pool
	Redis    *redis.Client
	Cost     int
	TokenTTL time.Duration
}

func validRole(role string) bool {
	return role == RoleAdmin || role == RoleVendor || role == RoleCustomer
}

func (s *Service) Register(ctx context.Context, name, email, password, role string) (*User, error) {
	if name == "" || email == "" {
		return nil, errs.Validationf("name and email are required")
	}
	if len(password) < 8 {
		return nil, errs.Validationf("password must be at least 8 characters")
	}
	if role == "" {
		role = RoleCustomer
	}
	if !validRole(role) {
		return nil, errs.Validationf("unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.Cost)
	if err != nil {
		return nil, err
	}

	u := &User{ID: uuid.NewString(), Name: name, Email: strings.ToLower(email), Role: role}
	err = s.DB.QueryRow(ctx, `
		INSERT INTO users(id, name, email, password_hash, role)
		VALUES ($1,$2,$3,$4,$5) RETURNING created_at`,
		u.ID, u.Name, u.Email, hash, u.Role).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, errs.Validationf("email %s already registered", u.Email)
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	var u User
	var hash []byte
	err := s.DB.QueryRow(ctx, `SELECT id, name, email, password_hash, role, created_at FROM users WHERE email=$1`,
		strings.ToLower(email)).Scan(&u.ID, &u.Name, &u.Email, &hash, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, errs.ErrUnauthorized
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return "", nil, errs.ErrUnauthorized
	}

	token := uuid.NewString()
	key := fmt.Sprintf(redisx.KeyAuthToken, token)
	if err := s.Redis.Set(ctx, key, u.ID+":"+u.Role, s.TokenTTL).Err(); err != nil {
		return "", nil, err
	}
	return token, &u, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyAuthToken, token)).Err()
}

func (s *Service) Identify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, errs.ErrUnauthorized
	}
	v, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeyAuthToken, token)).Result()
	if errors.Is(err, redis.Nil) {
		return Identity{}, errs.ErrUnauthorized
	}
	if err != nil {
		return Identity{}, err
	}
	userID, role, ok := strings.Cut(v, ":")
	if !ok {
		return Identity{}, errs.ErrUnauthorized
	}
	return Identity{UserID: userID, Role: role}, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.DB.QueryRow(ctx, `SELECT id, name, email, role, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.NotFoundf("user %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
