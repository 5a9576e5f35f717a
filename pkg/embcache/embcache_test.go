package embcache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestPutGet(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "cache.msgpack"))

	cache.Put("fp1", []float32{1, 2, 3}, "a.wav")
	entry, ok := cache.Get("fp1")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if entry.Filename != "a.wav" {
		t.Errorf("filename = %q, want a.wav", entry.Filename)
	}
	if len(entry.Embedding) != 3 || entry.Embedding[0] != 1 {
		t.Errorf("embedding = %v", entry.Embedding)
	}

	if _, ok := cache.Get("other"); ok {
		t.Error("expected miss for unknown fingerprint")
	}
}

func TestEvictionOldestFirst(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "cache.msgpack"), WithMaxEntries(3))

	for i := 0; i < 5; i++ {
		cache.Put(fmt.Sprintf("fp%d", i), []float32{float32(i)}, "f.wav")
	}

	if cache.Len() != 3 {
		t.Fatalf("len = %d, want 3", cache.Len())
	}
	for _, old := range []string{"fp0", "fp1"} {
		if _, ok := cache.Get(old); ok {
			t.Errorf("%s should have been evicted", old)
		}
	}
	for _, kept := range []string{"fp2", "fp3", "fp4"} {
		if _, ok := cache.Get(kept); !ok {
			t.Errorf("%s should have survived", kept)
		}
	}
}

func TestGetDoesNotRefresh(t *testing.T) {
	// Reads must not affect eviction order: entries leave in insertion
	// (timestamp) order no matter how often they are read.
	cache := New(filepath.Join(t.TempDir(), "cache.msgpack"), WithMaxEntries(2))

	cache.Put("fp0", []float32{0}, "f.wav")
	cache.Put("fp1", []float32{1}, "f.wav")
	if _, ok := cache.Get("fp0"); !ok {
		t.Fatal("fp0 should be present")
	}

	cache.Put("fp2", []float32{2}, "f.wav")
	if _, ok := cache.Get("fp0"); ok {
		t.Error("fp0 should be evicted despite recent read")
	}
	if _, ok := cache.Get("fp1"); !ok {
		t.Error("fp1 should survive")
	}
}

func TestSnapshotRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.msgpack")

	first := New(path)
	first.Put("fp1", []float32{1, 2}, "a.wav")
	first.Put("fp2", []float32{3, 4}, "b.wav")

	second := New(path)
	if second.Len() != 2 {
		t.Fatalf("reloaded len = %d, want 2", second.Len())
	}
	entry, ok := second.Get("fp2")
	if !ok {
		t.Fatal("fp2 missing after reload")
	}
	if entry.Filename != "b.wav" || len(entry.Embedding) != 2 {
		t.Errorf("reloaded entry = %+v", entry)
	}
}

func TestCorruptSnapshotIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.msgpack")
	if err := os.WriteFile(path, []byte("not msgpack"), 0o644); err != nil {
		t.Fatal(err)
	}

	cache := New(path)
	if cache.Len() != 0 {
		t.Errorf("corrupt snapshot should load as empty, got %d entries", cache.Len())
	}
	// The cache must stay usable and overwrite the bad snapshot.
	cache.Put("fp1", []float32{1}, "a.wav")
	if New(path).Len() != 1 {
		t.Error("snapshot not rewritten after corrupt load")
	}
}

func TestNilSnapshotStaysWritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.msgpack")
	// msgpack nil decodes cleanly into a nil map; the cache must not adopt
	// it as its backing store.
	if err := os.WriteFile(path, []byte{0xc0}, 0o644); err != nil {
		t.Fatal(err)
	}

	cache := New(path)
	if cache.Len() != 0 {
		t.Fatalf("nil snapshot should load as empty, got %d entries", cache.Len())
	}
	cache.Put("fp1", []float32{1}, "a.wav")
	if _, ok := cache.Get("fp1"); !ok {
		t.Error("cache should accept writes after nil snapshot")
	}
}

func TestSnapshotNilEntriesSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.msgpack")
	// A map with nil values decodes without error; those entries would
	// panic eviction and seq recovery if kept.
	if err := os.WriteFile(path, []byte{0x81, 0xa3, 'f', 'p', '1', 0xc0}, 0o644); err != nil {
		t.Fatal(err)
	}

	cache := New(path)
	if cache.Len() != 0 {
		t.Fatalf("nil entries should be skipped, got %d", cache.Len())
	}
	cache.Put("fp2", []float32{2}, "b.wav")
	if _, ok := cache.Get("fp2"); !ok {
		t.Error("cache should accept writes after skipping nil entries")
	}
}

func TestUnwritableSnapshotSwallowed(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "missing-dir", "cache.msgpack"))

	// Persistence fails silently; the in-memory cache still works.
	cache.Put("fp1", []float32{1}, "a.wav")
	if _, ok := cache.Get("fp1"); !ok {
		t.Error("entry should be readable despite failed snapshot")
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.msgpack")
	cache := New(path)
	cache.Put("fp1", []float32{1}, "a.wav")

	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("len after clear = %d, want 0", cache.Len())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("snapshot file should be removed on clear")
	}
}

func TestFingerprintTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	if err := os.WriteFile(path, []byte("content one"), 0o644); err != nil {
		t.Fatal(err)
	}

	fp1 := Fingerprint(path)
	if fp1 == "" {
		t.Fatal("empty fingerprint")
	}
	if fp2 := Fingerprint(path); fp2 != fp1 {
		t.Errorf("fingerprint not stable: %s != %s", fp1, fp2)
	}

	if err := os.WriteFile(path, []byte("content two!"), 0o644); err != nil {
		t.Fatal(err)
	}
	if fp3 := Fingerprint(path); fp3 == fp1 {
		t.Error("fingerprint unchanged after content change")
	}
}

func TestFingerprintMissingFileFallsBack(t *testing.T) {
	a := Fingerprint("/no/such/file-a")
	b := Fingerprint("/no/such/file-b")
	if a == "" || b == "" {
		t.Fatal("fallback fingerprint should not be empty")
	}
	if a == b {
		t.Error("distinct paths should produce distinct fallback fingerprints")
	}
}
