package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestConnFromContext_Empty(t *testing.T) {
	if ConnFromContext(context.Background()) != nil {
		t.Error("expected nil querier without a transaction")
	}
}

func TestNoopTransactor(t *testing.T) {
	called := false
	err := NoopTransactor{}.WithTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected fn to be called")
	}

	want := errors.New("boom")
	if err := (NoopTransactor{}).WithTx(context.Background(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("expected error to propagate, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_doctor_slot"}
	wrapped := fmt.Errorf("insert appointment: %w", pgErr)

	if !IsUniqueViolation(wrapped, "") {
		t.Error("expected unique violation")
	}
	if !IsUniqueViolation(wrapped, "uq_appointments_doctor_slot") {
		t.Error("expected unique violation on named constraint")
	}
	if IsUniqueViolation(wrapped, "other_key") {
		t.Error("did not expect a match on a different constraint")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("plain"), "") {
		t.Error("plain error is not a unique violation")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	if !IsForeignKeyViolation(fmt.Errorf("insert doctor: %w", &pgconn.PgError{Code: "23503"})) {
		t.Error("expected foreign key violation")
	}
	if IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("unique violation is not a foreign key violation")
	}
	if IsForeignKeyViolation(errors.New("plain")) {
		t.Error("plain error is not a foreign key violation")
	}
}
