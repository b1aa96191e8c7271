package capture

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/n4ldr/smcontrol/internal/session"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "captures.db")}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open capture store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestSeedWithoutCaptures(t *testing.T) {
	repo := newTestRepository(t)

	seed, err := repo.Seed("192.168.1.100")
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if seed.HasCapture {
		t.Error("empty store reported a capture")
	}
}

func TestRecordAndSeedRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	id := session.Identity{A: 0xC2B6D119, B: 0x5F8F361A, Tag: session.TagHybrid}
	if err := repo.Record("192.168.1.100", id); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	seed, err := repo.Seed("192.168.1.100")
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if !seed.HasCapture {
		t.Fatal("capture not found after Record")
	}
	if seed.CapturedA != id.A || seed.CapturedB != id.B {
		t.Errorf("seed = %08X/%08X, want %08X/%08X", seed.CapturedA, seed.CapturedB, id.A, id.B)
	}
}

func TestSeedReturnsMostRecentPerRadio(t *testing.T) {
	repo := newTestRepository(t)

	older := session.Identity{A: 1, B: 2, Tag: session.TagTimestamp}
	if err := repo.Record("radio-a", older); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	time.Sleep(5 * time.Millisecond) // distinct captured_at ordering
	newer := session.Identity{A: 3, B: 4, Tag: session.TagTransform}
	if err := repo.Record("radio-a", newer); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	other := session.Identity{A: 9, B: 9, Tag: session.TagReplay}
	if err := repo.Record("radio-b", other); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	seed, err := repo.Seed("radio-a")
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if seed.CapturedA != newer.A {
		t.Errorf("seed A = %08X, want the most recent capture %08X", seed.CapturedA, newer.A)
	}

	count, err := repo.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
