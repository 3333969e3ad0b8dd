package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradedesk/internal/models"
)

// ============================================================
// ConnectionRepository Tests
// ============================================================

func testConnectionRecord() *models.ConnectionRecord {
	return &models.ConnectionRecord{
		ID:        "3f1c9e4a-0c1f-4b36-9a18-2f60f1f0a001",
		Provider:  models.ProviderKraken,
		APIFamily: models.FamilyKrakenSpot,
		Env:       models.EnvProd,
		APIKey:    "enc:v2:a2V5",
		APISecret: "enc:v2:c2VjcmV0",
		Status:    models.ConnectionStatusActive,
	}
}

func TestNewConnectionRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewConnectionRepository(db)
	if repo == nil {
		t.Fatal("NewConnectionRepository returned nil")
	}
	if repo.db != db {
		t.Error("db not set correctly")
	}
}

func TestConnectionRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO connections`).
					WithArgs(
						"3f1c9e4a-0c1f-4b36-9a18-2f60f1f0a001",
						models.ProviderKraken,
						models.FamilyKrakenSpot,
						models.EnvProd,
						"enc:v2:a2V5",
						"enc:v2:c2VjcmV0",
						"",
						models.ConnectionStatusActive,
						"",
						sqlmock.AnyArg(),
						sqlmock.AnyArg(),
					).
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
			expectError: false,
		},
		{
			name: "database error",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO connections`).
					WillReturnError(errors.New("duplicate key"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewConnectionRepository(db)
			conn := testConnectionRecord()
			err = repo.Create(conn)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if conn.CreatedAt.IsZero() || conn.UpdatedAt.IsZero() {
					t.Error("Create must stamp created_at and updated_at")
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestConnectionRepositoryGetByID(t *testing.T) {
	now := time.Now()
	columns := []string{"id", "provider", "api_family", "env", "api_key", "api_secret", "passphrase", "status", "last_error", "created_at", "updated_at"}

	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows(columns).
					AddRow("conn-1", "kraken", "spot", "prod", "enc:v2:a2V5", "enc:v2:c2VjcmV0", "", "active", "", now, now)
				mock.ExpectQuery(`SELECT .+ FROM connections WHERE id = \$1`).
					WithArgs("conn-1").
					WillReturnRows(rows)
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .+ FROM connections WHERE id = \$1`).
					WithArgs("conn-1").
					WillReturnError(sql.ErrNoRows)
			},
			expectError: ErrConnectionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewConnectionRepository(db)
			conn, err := repo.GetByID("conn-1")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("error = %v, want %v", err, tt.expectError)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if conn.Provider != "kraken" || conn.APIFamily != "spot" {
				t.Errorf("unexpected record: %+v", conn)
			}
			if conn.APISecret != "enc:v2:c2VjcmV0" {
				t.Error("repository must return ciphertext untouched")
			}
		})
	}
}

func TestConnectionRepositoryGetAll(t *testing.T) {
	now := time.Now()
	columns := []string{"id", "provider", "api_family", "env", "api_key", "api_secret", "passphrase", "status", "last_error", "created_at", "updated_at"}

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(columns).
		AddRow("conn-2", "binance", "global", "sandbox", "k2", "s2", "", "active", "", now, now).
		AddRow("conn-1", "kraken", "spot", "prod", "k1", "s1", "", "failed", "EAPI:Invalid key", now.Add(-time.Hour), now)
	mock.ExpectQuery(`SELECT .+ FROM connections ORDER BY created_at DESC`).
		WillReturnRows(rows)

	repo := NewConnectionRepository(db)
	conns, err := repo.GetAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("got %d connections, want 2", len(conns))
	}
	if conns[0].ID != "conn-2" {
		t.Error("ordering by created_at DESC not preserved")
	}
	if conns[1].LastError != "EAPI:Invalid key" {
		t.Errorf("LastError = %q", conns[1].LastError)
	}
}

func TestConnectionRepositoryUpdateStatus(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError error
	}{
		{
			name: "success",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE connections SET status = \$1, last_error = \$2, updated_at = \$3 WHERE id = \$4`).
					WithArgs("failed", "connection test failed", sqlmock.AnyArg(), "conn-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "not found",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`UPDATE connections SET status = \$1, last_error = \$2, updated_at = \$3 WHERE id = \$4`).
					WithArgs("failed", "connection test failed", sqlmock.AnyArg(), "conn-1").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			expectError: ErrConnectionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewConnectionRepository(db)
			err = repo.UpdateStatus("conn-1", "failed", "connection test failed")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("error = %v, want %v", err, tt.expectError)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConnectionRepositoryUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`UPDATE connections`).
		WithArgs("prod", "enc:v2:bmV3a2V5", "enc:v2:bmV3c2VjcmV0", "", "active", "", sqlmock.AnyArg(), "conn-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewConnectionRepository(db)
	conn := testConnectionRecord()
	conn.ID = "conn-1"
	conn.APIKey = "enc:v2:bmV3a2V5"
	conn.APISecret = "enc:v2:bmV3c2VjcmV0"

	if err := repo.Update(conn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.UpdatedAt.IsZero() {
		t.Error("Update must stamp updated_at")
	}
}

func TestConnectionRepositoryDelete(t *testing.T) {
	tests := []struct {
		name        string
		rowsDeleted int64
		expectError error
	}{
		{name: "success", rowsDeleted: 1},
		{name: "not found", rowsDeleted: 0, expectError: ErrConnectionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`DELETE FROM connections WHERE id = \$1`).
				WithArgs("conn-1").
				WillReturnResult(sqlmock.NewResult(0, tt.rowsDeleted))

			repo := NewConnectionRepository(db)
			err = repo.Delete("conn-1")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("error = %v, want %v", err, tt.expectError)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
