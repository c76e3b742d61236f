package scratch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	d, err := New(nil, filepath.Join(t.TempDir(), "downloads"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return d
}

func TestPathShape(t *testing.T) {
	t.Parallel()
	d := newTestDir(t)

	p := d.Path("reel", 0, ".MP4")
	if filepath.Dir(p) != d.Root() {
		t.Fatalf("path outside root: %s", p)
	}
	base := filepath.Base(p)
	if !strings.HasPrefix(base, "reel_20260102_030405_0_") || !strings.HasSuffix(base, ".mp4") {
		t.Fatalf("unexpected name: %s", base)
	}
	if got := filepath.Base(d.Path("../../etc/x", 2, "jpg")); !strings.HasPrefix(got, "....etcx_") || !strings.HasSuffix(got, ".jpg") {
		t.Fatalf("unexpected sanitized name: %s", got)
	}
}

func TestPathUnique(t *testing.T) {
	t.Parallel()
	d := newTestDir(t)

	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		p := d.Path("photo", 1, ".jpg")
		if _, dup := seen[p]; dup {
			t.Fatalf("duplicate path %s", p)
		}
		seen[p] = struct{}{}
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	d := newTestDir(t)

	p := d.Path("f", 0, ".bin")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := d.Remove(p); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("file still exists: %v", err)
	}
	if err := d.Remove(p); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
	if err := d.Remove("/etc/passwd"); err == nil {
		t.Fatal("expected error for path outside scratch dir")
	}
}

func TestSweep(t *testing.T) {
	t.Parallel()
	d := newTestDir(t)
	now := time.Now()
	d.now = func() time.Time { return now }

	stale := filepath.Join(d.Root(), "stale.bin")
	fresh := filepath.Join(d.Root(), "fresh.bin")
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := now.Add(-3 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(d.Root(), "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	removed, err := d.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale file should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file should remain: %v", err)
	}
}
