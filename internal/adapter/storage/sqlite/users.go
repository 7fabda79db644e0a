package sqlite

import (
	"database/sql"
	"errors"

	"github.com/mlevkov/clipdock/internal/domain"
	"github.com/mlevkov/clipdock/internal/port"
)

func (s *Store) HasUser() (bool, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) GetUser(username string) (*domain.User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username))
}

func (s *Store) GetUserByID(id int64) (*domain.User, error) {
	return s.scanUser(s.db.QueryRow(
		"SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id))
}

func (s *Store) CreateUser(username, passwordHash string) error {
	_, err := s.db.Exec(
		"INSERT INTO users (username, password_hash) VALUES (?, ?)", username, passwordHash)
	return err
}

func (s *Store) UpdatePassword(id int64, passwordHash string) error {
	_, err := s.db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", passwordHash, id)
	return err
}

func (s *Store) scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

var _ port.UserStore = (*Store)(nil)
