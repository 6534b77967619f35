package tofu

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/gopher-mcp/internal/apperr"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "tofu-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func obs(fp string) Observation {
	return Observation{
		Fingerprint: fp,
		NotBefore:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:    time.Date(2034, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSchemaCreation(t *testing.T) {
	s := testStore(t)
	var count int
	if err := s.conn.QueryRow(`SELECT count(*) FROM trust_records`).Scan(&count); err != nil {
		t.Fatalf("trust_records table missing: %v", err)
	}
}

func TestOpen_PathWithQueryCharacters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trust?v=1#a.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.Verify(context.Background(), "example.org:1965", obs("aa")); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database not created at %q: %v", path, err)
	}
	var mode string
	if err := s.conn.QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil || mode != "wal" {
		t.Errorf("journal_mode = %q, %v", mode, err)
	}
}

func TestVerify_FirstUseThenTrusted(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	out, err := s.Verify(ctx, "example.org:1965", obs("aa"))
	if err != nil || out != FirstUse {
		t.Fatalf("first Verify = %v, %v; want FirstUse", out, err)
	}
	first, err := s.Get(ctx, "example.org:1965")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.Fingerprint != "aa" || !first.NotAfter.Equal(obs("aa").NotAfter) {
		t.Errorf("stored record = %+v", first)
	}

	time.Sleep(5 * time.Millisecond)
	out, err = s.Verify(ctx, "example.org:1965", obs("aa"))
	if err != nil || out != Trusted {
		t.Fatalf("second Verify = %v, %v; want Trusted", out, err)
	}
	second, _ := s.Get(ctx, "example.org:1965")
	if !second.LastSeen.After(first.LastSeen) {
		t.Errorf("last_seen not updated: %v -> %v", first.LastSeen, second.LastSeen)
	}
	if !second.FirstSeen.Equal(first.FirstSeen) {
		t.Errorf("first_seen changed: %v -> %v", first.FirstSeen, second.FirstSeen)
	}
}

func TestVerify_MismatchLeavesRecordUnchanged(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.Verify(ctx, "example.org:1965", obs("aa")); err != nil {
		t.Fatal(err)
	}
	before, _ := s.Get(ctx, "example.org:1965")

	out, err := s.Verify(ctx, "example.org:1965", obs("bb"))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if out != Mismatch || out.OK() {
		t.Fatalf("outcome = %v, want Mismatch", out)
	}
	after, _ := s.Get(ctx, "example.org:1965")
	if after.Fingerprint != before.Fingerprint || !after.LastSeen.Equal(before.LastSeen) {
		t.Errorf("record changed on mismatch: %+v -> %+v", before, after)
	}
}

func TestVerify_PortsAreIndependent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if out, _ := s.Verify(ctx, "example.org:1965", obs("aa")); out != FirstUse {
		t.Fatalf("outcome = %v", out)
	}
	if out, _ := s.Verify(ctx, "example.org:1966", obs("bb")); out != FirstUse {
		t.Fatalf("different port should be first use, got %v", out)
	}
}

func TestVerify_ConcurrentFirstContact(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[Outcome]int{}
	)
	for i := 0; i < n; i++ {
		fp := "aa"
		if i%2 == 1 {
			fp = "bb"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := s.Verify(ctx, "race.example:1965", obs(fp))
			if err != nil {
				t.Errorf("Verify: %v", err)
				return
			}
			mu.Lock()
			outcomes[out]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if outcomes[FirstUse] != 1 {
		t.Errorf("outcomes = %v, want exactly one FirstUse", outcomes)
	}
	rec, _ := s.Get(ctx, "race.example:1965")
	winner := rec.Fingerprint
	wantTrusted := n/2 - 1
	if outcomes[Trusted] != wantTrusted || outcomes[Mismatch] != n/2 {
		t.Errorf("outcomes = %v for winner %s", outcomes, winner)
	}
}

func TestRemoveResetsTrust(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	_, _ = s.Verify(ctx, "example.org:1965", obs("aa"))

	if err := s.Remove(ctx, "example.org:1965"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(ctx, "example.org:1965"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after remove = %v", err)
	}
	if out, _ := s.Verify(ctx, "example.org:1965", obs("bb")); out != FirstUse {
		t.Errorf("after reset outcome = %v, want FirstUse", out)
	}
	if err := s.Remove(ctx, "missing:1965"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Remove missing = %v", err)
	}
}

func TestList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	_, _ = s.Verify(ctx, "b.example:1965", obs("bb"))
	_, _ = s.Verify(ctx, "a.example:1965", obs("aa"))

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].HostPort != "a.example:1965" || recs[1].HostPort != "b.example:1965" {
		t.Errorf("List = %+v", recs)
	}
}

func TestDisabled(t *testing.T) {
	out, err := Disabled{}.Verify(context.Background(), "x:1", obs("aa"))
	if err != nil || out != Trusted {
		t.Errorf("Disabled.Verify = %v, %v", out, err)
	}
}
