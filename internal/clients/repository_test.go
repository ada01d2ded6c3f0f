package clients

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryCreateAndGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	rec := &ClientRecord{
		BaseURL:    "https://shop.example",
		UPIID:      "shop@upi",
		SecretHash: HashSecret("s3cr3t"),
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if rec.CreatedAt == "" || rec.UpdatedAt == "" {
		t.Fatal("expected timestamps to be populated on create")
	}

	got, err := repo.Get(ctx, "https://shop.example")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.UPIID != "shop@upi" {
		t.Errorf("expected upiId shop@upi, got %s", got.UPIID)
	}
}

func TestInMemoryGetUnknown(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.Get(context.Background(), "https://missing.example")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryCreateDuplicate(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	first := &ClientRecord{BaseURL: "https://shop.example", SecretHash: HashSecret("a")}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	dup := &ClientRecord{BaseURL: "https://shop.example", SecretHash: HashSecret("b")}
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestInMemoryUpdateWrongSecretLeavesRecordUntouched(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	rec := &ClientRecord{BaseURL: "https://shop.example", UPIID: "shop@upi", SecretHash: HashSecret("s3cr3t")}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	other := "other@upi"
	_, err := repo.Update(ctx, "https://shop.example", HashSecret("wrong"), UpdateFields{UPIID: &other})
	if !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}

	got, err := repo.Get(ctx, "https://shop.example")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.UPIID != "shop@upi" {
		t.Errorf("record mutated despite invalid secret: %s", got.UPIID)
	}
}

func TestInMemoryPartialUpdate(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	rec := &ClientRecord{
		BaseURL:     "https://shop.example",
		UPIID:       "shop@upi",
		QRImagePath: "/uploads/old.png",
		SecretHash:  HashSecret("s3cr3t"),
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	newPath := "/uploads/new.png"
	updated, err := repo.Update(ctx, "https://shop.example", HashSecret("s3cr3t"), UpdateFields{QRImagePath: &newPath})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if updated.UPIID != "shop@upi" {
		t.Errorf("upiId should be untouched, got %s", updated.UPIID)
	}
	if updated.QRImagePath != "/uploads/new.png" {
		t.Errorf("expected new image path, got %s", updated.QRImagePath)
	}
	if updated.UpdatedAt == rec.UpdatedAt && updated.UpdatedAt == "" {
		t.Error("expected updatedAt to be refreshed")
	}
}

func TestInMemorySecretRotation(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	rec := &ClientRecord{BaseURL: "https://shop.example", SecretHash: HashSecret("old")}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	rotated := HashSecret("new")
	if _, err := repo.Update(ctx, "https://shop.example", HashSecret("old"), UpdateFields{SecretHash: &rotated}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if _, err := repo.Update(ctx, "https://shop.example", HashSecret("old"), UpdateFields{}); !errors.Is(err, ErrInvalidSecret) {
		t.Fatalf("expected old secret to be rejected after rotation, got %v", err)
	}
	if _, err := repo.Update(ctx, "https://shop.example", HashSecret("new"), UpdateFields{}); err != nil {
		t.Fatalf("expected new secret to verify, got %v", err)
	}
}

func TestInMemoryGetReturnsCopy(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, &ClientRecord{BaseURL: "https://shop.example", UPIID: "shop@upi", SecretHash: "h"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, _ := repo.Get(ctx, "https://shop.example")
	got.UPIID = "tampered"

	fresh, _ := repo.Get(ctx, "https://shop.example")
	if fresh.UPIID != "shop@upi" {
		t.Error("mutating a returned record must not affect the store")
	}
}
