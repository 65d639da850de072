package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestWrapNotFound(t *testing.T) {
	if WrapNotFound(nil) != nil {
		t.Fatal("nil must stay nil")
	}
	if !errors.Is(WrapNotFound(pgx.ErrNoRows), ErrNotFound) {
		t.Fatal("pgx.ErrNoRows must map to ErrNotFound")
	}
	if !errors.Is(WrapNotFound(fmt.Errorf("query snapshot: %w", pgx.ErrNoRows)), ErrNotFound) {
		t.Fatal("wrapped pgx.ErrNoRows must map to ErrNotFound")
	}

	boom := errors.New("connection refused")
	wrapped := WrapNotFound(boom)
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatal("unrelated errors must not become ErrNotFound")
	}
	if !errors.Is(wrapped, boom) {
		t.Fatal("original error must remain unwrappable")
	}
}
