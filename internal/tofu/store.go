package tofu

import (
	"context"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/checksum"
)

// Outcome is the result of checking a fingerprint against the store.
type Outcome string

const (
	Trusted  Outcome = "trusted"
	FirstUse Outcome = "first_use"
	Mismatch Outcome = "mismatch"
)

// OK reports whether the handshake may proceed.
func (o Outcome) OK() bool { return o == Trusted || o == FirstUse }

// Record is one pinned certificate.
type Record struct {
	HostPort    string    `json:"hostPort"`
	Fingerprint string    `json:"fingerprint"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`
	NotBefore   time.Time `json:"notBefore,omitzero"`
	NotAfter    time.Time `json:"notAfter,omitzero"`
}

// Observation is what a handshake presents for checking.
type Observation struct {
	Fingerprint string
	NotBefore   time.Time
	NotAfter    time.Time
}

// Observe builds an Observation from a peer leaf certificate.
func Observe(cert *x509.Certificate) Observation {
	return Observation{
		Fingerprint: checksum.Fingerprint(cert),
		NotBefore:   cert.NotBefore.UTC(),
		NotAfter:    cert.NotAfter.UTC(),
	}
}

// Verifier decides whether a presented certificate is trusted.
type Verifier interface {
	Verify(ctx context.Context, hostPort string, obs Observation) (Outcome, error)
}

var _ Verifier = (*Store)(nil)

// Verify checks obs against the record for hostPort. The first call for a
// hostPort persists a record and returns FirstUse. Later calls return Trusted
// and refresh last_seen when the fingerprint matches, or Mismatch with the
// stored record left untouched. The error is reserved for storage failures.
func (s *Store) Verify(ctx context.Context, hostPort string, obs Observation) (Outcome, error) {
	now := time.Now().UTC()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", storeErr(fmt.Errorf("tofu: begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx, `
		INSERT INTO trust_records (host_port, fingerprint, first_seen, last_seen, not_before, not_after)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(host_port) DO NOTHING
	`, hostPort, obs.Fingerprint, now, now, nullTime(obs.NotBefore), nullTime(obs.NotAfter))
	if err != nil {
		return "", storeErr(fmt.Errorf("tofu: insert record: %w", err))
	}
	if n, _ := res.RowsAffected(); n == 1 {
		if err := tx.Commit(); err != nil {
			return "", storeErr(fmt.Errorf("tofu: commit: %w", err))
		}
		return FirstUse, nil
	}

	// Lost the race or seen before: compare against the committed record.
	var stored string
	err = tx.QueryRowContext(ctx, `SELECT fingerprint FROM trust_records WHERE host_port = ?`, hostPort).Scan(&stored)
	if err != nil {
		return "", storeErr(fmt.Errorf("tofu: load record: %w", err))
	}
	if !checksum.Equal(stored, obs.Fingerprint) {
		return Mismatch, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE trust_records SET last_seen = ? WHERE host_port = ?`, now, hostPort); err != nil {
		return "", storeErr(fmt.Errorf("tofu: touch record: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return "", storeErr(fmt.Errorf("tofu: commit: %w", err))
	}
	return Trusted, nil
}

// Get returns the record for hostPort or apperr.ErrNotFound.
func (s *Store) Get(ctx context.Context, hostPort string) (*Record, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT host_port, fingerprint, first_seen, last_seen, not_before, not_after
		FROM trust_records WHERE host_port = ?
	`, hostPort)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tofu: get record: %w", err)
	}
	return r, nil
}

// List returns every record ordered by host_port.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT host_port, fingerprint, first_seen, last_seen, not_before, not_after
		FROM trust_records ORDER BY host_port
	`)
	if err != nil {
		return nil, fmt.Errorf("tofu: list records: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("tofu: scan record: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Remove deletes the record for hostPort. This is the only way a pinned
// fingerprint is ever replaced.
func (s *Store) Remove(ctx context.Context, hostPort string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM trust_records WHERE host_port = ?`, hostPort)
	if err != nil {
		return fmt.Errorf("tofu: remove record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		r         Record
		notBefore sql.NullTime
		notAfter  sql.NullTime
	)
	if err := sc.Scan(&r.HostPort, &r.Fingerprint, &r.FirstSeen, &r.LastSeen, &notBefore, &notAfter); err != nil {
		return nil, err
	}
	r.NotBefore = notBefore.Time
	r.NotAfter = notAfter.Time
	return &r, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func storeErr(err error) error {
	return apperr.Wrap(apperr.CodeTrustStore, apperr.StageTrust, err)
}

// Disabled trusts every certificate without persisting anything.
type Disabled struct{}

// Verify always returns Trusted.
func (Disabled) Verify(context.Context, string, Observation) (Outcome, error) {
	return Trusted, nil
}

var _ Verifier = Disabled{}
