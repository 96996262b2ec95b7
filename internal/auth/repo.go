package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mangasync/internal/records"
)

const timeLayout = "2006-01-02 15:04:05.000Z"

type Admin struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	// TokenKey is mixed into every token; changing it revokes them all.
	TokenKey string `json:"-"`
	Created  string `json:"created"`
	Updated  string `json:"updated"`
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

func (r *Repo) CreateAdmin(ctx context.Context, email, password string) (*Admin, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("create admin: invalid email %q", email)
	}
	if len(password) < 8 || len(password) > 72 {
		return nil, errors.New("create admin: password must be 8-72 chars")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("create admin: hash: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	a := &Admin{
		ID:           records.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		TokenKey:     records.NewID() + records.NewID(),
		Created:      now,
		Updated:      now,
	}
	_, err = r.DB.ExecContext(ctx, `
		INSERT INTO admins (id, email, password_hash, token_key, created, updated)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.Email, a.PasswordHash, a.TokenKey, a.Created, a.Updated)
	if err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return a, nil
}

// EnsureAdmin creates the admin account unless the email is already taken.
func (r *Repo) EnsureAdmin(ctx context.Context, email, password string) (*Admin, bool, error) {
	if a, err := r.GetByEmail(ctx, email); err != nil || a != nil {
		return a, false, err
	}
	a, err := r.CreateAdmin(ctx, email, password)
	return a, err == nil, err
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	return r.getOne(ctx, "LOWER(email) = ?", email)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Admin, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *Repo) getOne(ctx context.Context, where string, arg any) (*Admin, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, token_key, created, updated
		FROM admins
		WHERE `+where, arg)

	var a Admin
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.TokenKey, &a.Created, &a.Updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &a, nil
}

// Authenticate returns the admin when the password matches, nil otherwise.
func (r *Repo) Authenticate(ctx context.Context, email, password string) (*Admin, error) {
	a, err := r.GetByEmail(ctx, email)
	if err != nil || a == nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}
	return a, nil
}
