package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

var sessionRowColumns = []string{"id", "user_id", "expires_at", "last_activity", "created_at", "user_agent", "ip_address"}

func TestSessionRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	now := time.Now().UTC()
	ip := "198.51.100.10"
	session := domain.Session{
		ID:           "digest-1",
		UserID:       "user-1",
		ExpiresAt:    now.Add(time.Hour),
		LastActivity: now,
		CreatedAt:    now,
		IPAddress:    &ip,
	}

	mock.ExpectExec(`INSERT INTO auth\.sessions`).
		WithArgs(session.ID, session.UserID, session.ExpiresAt, session.LastActivity, session.CreatedAt, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), session); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows(sessionRowColumns).
		AddRow("digest-1", "user-1", now.Add(time.Hour), now, now, "Firefox", "203.0.113.5")
	mock.ExpectQuery(`SELECT .*FROM auth\.sessions WHERE id = \$1`).
		WithArgs("digest-1").
		WillReturnRows(rows)

	session, err := repo.GetByID(context.Background(), "digest-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if session.UserID != "user-1" {
		t.Fatalf("expected user-1, got %s", session.UserID)
	}
	if session.IPAddress == nil || *session.IPAddress != "203.0.113.5" {
		t.Fatalf("expected ip address to be populated")
	}

	mock.ExpectQuery(`SELECT .*FROM auth\.sessions WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(sessionRowColumns))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_TouchNeverRewinds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`UPDATE auth\.sessions SET last_activity = GREATEST\(last_activity, \$1::timestamptz\) WHERE id = \$2`).
		WithArgs(at, "gone").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Touch(context.Background(), "gone", at); err != nil {
		t.Fatalf("Touch of a deleted session must be a no-op, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_DeleteAllForUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)

	mock.ExpectExec(`DELETE FROM auth\.sessions WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	removed, err := repo.DeleteAllForUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("DeleteAllForUser returned error: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 sessions removed, got %d", removed)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewSessionRepository(mock)
	at := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM auth\.sessions WHERE \(expires_at <= \$1 OR last_activity <= \$2\)`).
		WithArgs(at, at.Add(-30*time.Minute)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	removed, err := repo.DeleteExpired(context.Background(), at, 30*time.Minute)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 sessions purged, got %d", removed)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
