package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/connectsphere/connectsphere/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrShortIDExhausted   = errors.New("short id space exhausted")
	ErrNothingToUpdate    = errors.New("nothing to update")
	ErrUsernameEmpty      = errors.New("username must not be empty")
)

// maxShortIDAttempts bounds the random draw loop. With 9000 candidate codes
// the draw only keeps colliding once the table is nearly full, at which point
// failing loudly beats spinning.
const maxShortIDAttempts = 50

// drawShortID is a seam for tests; returns a 4-digit code in [1000, 9999].
var drawShortID = func() string {
	return fmt.Sprintf("%04d", 1000+rand.Intn(9000))
}

const userColumns = `u.id, u.email, u.password_hash, u.username, s.code, u.photo_url, u.is_online, u.last_seen, u.created_at, u.updated_at`

const userSelect = `SELECT ` + userColumns + `
	 FROM users u JOIN short_ids s ON s.user_id = u.id`

type UserService struct {
	db DBConn
}

func NewUserService(db DBConn) *UserService {
	return &UserService{db: db}
}

// Create registers a profile and its short id in one transaction, so a
// profile can never exist without a working short-id mapping.
func (s *UserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if strings.TrimSpace(params.Username) == "" {
		return nil, ErrUsernameEmpty
	}

	var exists bool
	err := s.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", params.Email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking email existence: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	user := &models.User{
		Email:    params.Email,
		Username: params.Username,
		IsOnline: true,
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, username, photo_url, is_online)
		 VALUES ($1, $2, $3, '', true)
		 RETURNING id, created_at, updated_at`,
		params.Email, params.PasswordHash, params.Username,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	user.PhotoURL = defaultPhotoURL(user.ID)
	if _, err := tx.Exec(ctx, "UPDATE users SET photo_url = $1 WHERE id = $2", user.PhotoURL, user.ID); err != nil {
		return nil, fmt.Errorf("setting photo url: %w", err)
	}

	shortID, err := allocateShortID(ctx, tx, user.ID)
	if err != nil {
		return nil, err
	}
	user.ShortID = shortID

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing user creation: %w", err)
	}

	return user, nil
}

// allocateShortID draws random 4-digit codes until one inserts cleanly. The
// primary key on short_ids makes the draw race-safe across concurrent
// registrations: a losing draw affects zero rows and we redraw.
func allocateShortID(ctx context.Context, tx Tx, userID uuid.UUID) (string, error) {
	for attempt := 0; attempt < maxShortIDAttempts; attempt++ {
		code := drawShortID()
		result, err := tx.Exec(ctx,
			"INSERT INTO short_ids (code, user_id) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING",
			code, userID,
		)
		if err != nil {
			return "", fmt.Errorf("inserting short id: %w", err)
		}
		if result.RowsAffected() == 1 {
			return code, nil
		}
	}
	return "", ErrShortIDExhausted
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx, userSelect+" WHERE u.id = $1", id))
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.db.QueryRow(ctx, userSelect+" WHERE u.email = $1", email))
}

// GetByShortID resolves the lookup table first and then loads the profile,
// mirroring the two-step read discovery uses.
func (s *UserService) GetByShortID(ctx context.Context, code string) (*models.User, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, "SELECT user_id FROM short_ids WHERE code = $1", code).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving short id: %w", err)
	}
	return s.GetByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	setClauses := []string{}
	args := []any{}
	idx := 1

	if params.Username != nil {
		if strings.TrimSpace(*params.Username) == "" {
			return nil, ErrUsernameEmpty
		}
		setClauses = append(setClauses, fmt.Sprintf("username = $%d", idx))
		args = append(args, *params.Username)
		idx++
	}
	if params.PhotoURL != nil {
		setClauses = append(setClauses, fmt.Sprintf("photo_url = $%d", idx))
		args = append(args, *params.PhotoURL)
		idx++
	}
	if len(setClauses) == 0 {
		return nil, ErrNothingToUpdate
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), idx)

	result, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetByID(ctx, userID)
}

func (s *UserService) UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error {
	result, err := s.db.Exec(ctx,
		"UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2",
		newPasswordHash, userID,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the account. Short-id mapping, mailbox entries, friendship
// edges and sessions go with it through foreign keys.
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	result, err := s.db.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Username,
		&user.ShortID,
		&user.PhotoURL,
		&user.IsOnline,
		&user.LastSeen,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return user, nil
}

func defaultPhotoURL(userID uuid.UUID) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", userID)
}
