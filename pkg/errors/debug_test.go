package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestDumpCollectsChainAndCode(t *testing.T) {
	err := fmt.Errorf("logout: %w", Wrap(CodeRemote, stdErrors.New("connection refused"), "replace cart"))

	d := Dump(err)
	if d.Code != CodeRemote {
		t.Fatalf("expected remote code, got %q", d.Code)
	}
	if !d.Retryable {
		t.Fatalf("remote errors are retryable")
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	fields := d.Fields()
	if _, ok := fields["pg_code"]; ok {
		t.Fatalf("pg fields should be omitted for non-driver errors")
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", TableName: "profile_entries", Message: "duplicate key"}
	d := Dump(Wrap(CodeStorage, pgErr, "save guest cart"))
	if d.PGCode != "23505" || d.PGTable != "profile_entries" {
		t.Fatalf("unexpected pg details %+v", d)
	}
	if d.Fields()["pg_code"] != "23505" {
		t.Fatalf("expected pg_code field")
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected zero dump, got %+v", d)
	}
}
