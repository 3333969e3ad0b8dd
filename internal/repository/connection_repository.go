package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradedesk/internal/models"
)

// Ошибки репозитория подключений
var (
	ErrConnectionNotFound = errors.New("connection not found")
)

// ConnectionRepository - работа с таблицей connections.
// Колонки api_key/api_secret/passphrase хранят шифртекст: шифрование
// выполняет сервисный слой до вызова репозитория.
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository создает новый экземпляр репозитория
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create сохраняет новое подключение
func (r *ConnectionRepository) Create(conn *models.ConnectionRecord) error {
	query := `
		INSERT INTO connections (id, provider, api_family, env, api_key, api_secret, passphrase, status, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	_, err := r.db.Exec(
		query,
		conn.ID,
		conn.Provider,
		conn.APIFamily,
		conn.Env,
		conn.APIKey,
		conn.APISecret,
		conn.Passphrase,
		conn.Status,
		conn.LastError,
		conn.CreatedAt,
		conn.UpdatedAt,
	)
	return err
}

// GetByID возвращает подключение по ID
func (r *ConnectionRepository) GetByID(id string) (*models.ConnectionRecord, error) {
	query := `
		SELECT id, provider, api_family, env, api_key, api_secret, passphrase, status, last_error, created_at, updated_at
		FROM connections
		WHERE id = $1`

	conn := &models.ConnectionRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&conn.ID,
		&conn.Provider,
		&conn.APIFamily,
		&conn.Env,
		&conn.APIKey,
		&conn.APISecret,
		&conn.Passphrase,
		&conn.Status,
		&conn.LastError,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}

	return conn, nil
}

// GetAll возвращает все подключения, новые первыми
func (r *ConnectionRepository) GetAll() ([]*models.ConnectionRecord, error) {
	query := `
		SELECT id, provider, api_family, env, api_key, api_secret, passphrase, status, last_error, created_at, updated_at
		FROM connections
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns []*models.ConnectionRecord
	for rows.Next() {
		conn := &models.ConnectionRecord{}
		err := rows.Scan(
			&conn.ID,
			&conn.Provider,
			&conn.APIFamily,
			&conn.Env,
			&conn.APIKey,
			&conn.APISecret,
			&conn.Passphrase,
			&conn.Status,
			&conn.LastError,
			&conn.CreatedAt,
			&conn.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		conns = append(conns, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return conns, nil
}

// Update перезаписывает ключи и окружение подключения (ротация ключей)
func (r *ConnectionRepository) Update(conn *models.ConnectionRecord) error {
	query := `
		UPDATE connections
		SET env = $1, api_key = $2, api_secret = $3, passphrase = $4, status = $5, last_error = $6, updated_at = $7
		WHERE id = $8`

	conn.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		query,
		conn.Env,
		conn.APIKey,
		conn.APISecret,
		conn.Passphrase,
		conn.Status,
		conn.LastError,
		conn.UpdatedAt,
		conn.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrConnectionNotFound
	}

	return nil
}

// UpdateStatus обновляет статус подключения и текст последней ошибки
func (r *ConnectionRepository) UpdateStatus(id, status, lastError string) error {
	query := `
		UPDATE connections
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(query, status, lastError, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrConnectionNotFound
	}

	return nil
}

// Delete удаляет подключение вместе с ключами
func (r *ConnectionRepository) Delete(id string) error {
	query := `DELETE FROM connections WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrConnectionNotFound
	}

	return nil
}
