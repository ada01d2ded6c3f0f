package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func recordRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"base_url", "upi_id", "qr_image_path", "secret_hash", "created_at", "updated_at"})
}

func TestPostgresCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO payment_clients").
		WithArgs("https://shop.example", "shop@upi", "", "digest", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPostgresRepository(mock)
	rec := &ClientRecord{BaseURL: "https://shop.example", UPIID: "shop@upi", SecretHash: "digest"}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if rec.CreatedAt == "" || rec.UpdatedAt != rec.CreatedAt {
		t.Fatal("expected matching timestamps on create")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresCreateConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec("INSERT INTO payment_clients").
		WithArgs("https://shop.example", "", "", "digest", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	repo := NewPostgresRepository(mock)
	err = repo.Create(context.Background(), &ClientRecord{BaseURL: "https://shop.example", SecretHash: "digest"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPostgresGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT base_url, upi_id, qr_image_path, secret_hash").
		WithArgs("https://shop.example").
		WillReturnRows(recordRows().AddRow("https://shop.example", "shop@upi", "/uploads/qr.png", "digest", now, now))

	repo := NewPostgresRepository(mock)
	rec, err := repo.Get(context.Background(), "https://shop.example")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if rec.UPIID != "shop@upi" || rec.QRImagePath != "/uploads/qr.png" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := time.Parse(time.RFC3339Nano, rec.CreatedAt); err != nil {
		t.Fatalf("createdAt is not RFC3339Nano: %v", err)
	}
}

func TestPostgresGetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("SELECT base_url, upi_id, qr_image_path, secret_hash").
		WithArgs("https://missing.example").
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	_, err = repo.Get(context.Background(), "https://missing.example")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	now := time.Now().UTC()
	upi := "new@upi"
	mock.ExpectQuery("UPDATE payment_clients").
		WithArgs("https://shop.example", "verifydigest", &upi, (*string)(nil), (*string)(nil), pgxmock.AnyArg()).
		WillReturnRows(recordRows().AddRow("https://shop.example", "new@upi", "", "verifydigest", now, now))

	repo := NewPostgresRepository(mock)
	rec, err := repo.Update(context.Background(), "https://shop.example", "verifydigest", UpdateFields{UPIID: &upi})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if rec.UPIID != "new@upi" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestPostgresUpdateInvalidSecret(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("UPDATE payment_clients").
		WithArgs("https://shop.example", "wrongdigest", (*string)(nil), (*string)(nil), (*string)(nil), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	repo := NewPostgresRepository(mock)
	_, err = repo.Update(context.Background(), "https://shop.example", "wrongdigest", UpdateFields{})
	if !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
}
