package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/adaptive-reader/backend/internal/models"
	"github.com/lib/pq"
)

var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrNotFound      = errors.New("reader not found")
)

// Store persists reader accounts. Password holds the bcrypt hash.
type Store interface {
	CreateReader(ctx context.Context, username, passwordHash string) (*models.Reader, error)
	GetByUsername(ctx context.Context, username string) (*models.Reader, error)
	GetByID(ctx context.Context, id int64) (*models.Reader, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateReader(ctx context.Context, username, passwordHash string) (*models.Reader, error) {
	var r models.Reader
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO readers (username, password)
		 VALUES ($1, $2)
		 RETURNING id, username, rating, created_at, updated_at`,
		username, passwordHash,
	).Scan(&r.ID, &r.Username, &r.Rating, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert reader: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (*models.Reader, error) {
	return s.getOne(ctx,
		`SELECT id, username, password, rating, created_at, updated_at FROM readers WHERE username = $1`,
		username)
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.Reader, error) {
	return s.getOne(ctx,
		`SELECT id, username, password, rating, created_at, updated_at FROM readers WHERE id = $1`,
		id)
}

func (s *PostgresStore) getOne(ctx context.Context, query string, arg any) (*models.Reader, error) {
	var r models.Reader
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&r.ID, &r.Username, &r.Password, &r.Rating, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reader: %w", err)
	}
	return &r, nil
}
