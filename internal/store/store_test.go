package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestInferExtension tests the content type, URL, fallback order.
func TestInferExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		url         string
		want        string
	}{
		{"jpeg content type", "image/jpeg", "http://a.test/x", ".jpg"},
		{"content type with params", "image/png; charset=binary", "http://a.test/x.jpg", ".png"},
		{"upper case content type", "IMAGE/GIF", "", ".gif"},
		{"content type wins over url", "image/webp", "http://a.test/x.png", ".webp"},
		{"non-image type falls back to url", "text/plain", "http://a.test/x.jpeg", ".jpg"},
		{"octet-stream falls back to url", "application/octet-stream", "http://a.test/x.TIFF", ".tif"},
		{"url with query", "", "http://a.test/x.png?size=large", ".png"},
		{"unknown url suffix", "", "http://a.test/.a/abc-popup", ".bin"},
		{"nothing known", "", "", ".bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferExtension(tt.contentType, tt.url); got != tt.want {
				t.Errorf("InferExtension(%q, %q) = %q, want %q", tt.contentType, tt.url, got, tt.want)
			}
		})
	}
}

// TestDigest tests the sha1 naming.
func TestDigest(t *testing.T) {
	t.Parallel()

	// sha1("hello")
	if got := Digest([]byte("hello")); got != "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d" {
		t.Errorf("unexpected digest %q", got)
	}
}

// TestOpen tests store directory preparation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates missing directory", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "a", "b")
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Dir() != dir {
			t.Errorf("expected dir %q, got %q", dir, s.Dir())
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected scratch file to be removed, found %d entries", len(entries))
		}
	})

	t.Run("rejects a file path", func(t *testing.T) {
		t.Parallel()

		file := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(file, []byte("x"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := Open(file); err == nil {
			t.Error("expected error for file path")
		}
	})
}

// TestPersist tests write-once semantics.
func TestPersist(t *testing.T) {
	t.Parallel()

	t.Run("same bytes from two urls produce one file", func(t *testing.T) {
		t.Parallel()

		s, err := Open(t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data := []byte("identical image bytes")

		first, written1, err := s.Persist(data, "image/jpeg", "http://a.test/.a/abc-320wi")
		if err != nil {
			t.Fatalf("first persist failed: %v", err)
		}
		second, written2, err := s.Persist(data, "image/jpeg", "http://b.test/other.jpg")
		if err != nil {
			t.Fatalf("second persist failed: %v", err)
		}

		if first.Filename() != second.Filename() {
			t.Errorf("expected same filename, got %q and %q", first.Filename(), second.Filename())
		}
		if !written1 || written2 {
			t.Errorf("expected exactly one write, got %v/%v", written1, written2)
		}
		if s.Written() != 1 || s.Reused() != 1 {
			t.Errorf("expected counters 1/1, got %d/%d", s.Written(), s.Reused())
		}

		content, err := os.ReadFile(first.Path)
		if err != nil {
			t.Fatalf("failed to read asset: %v", err)
		}
		if string(content) != string(data) {
			t.Error("stored content differs from input")
		}
		if first.Filename() != Digest(data)+".jpg" {
			t.Errorf("unexpected filename %q", first.Filename())
		}
	})

	t.Run("existing file is never overwritten", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data := []byte("payload")
		path := filepath.Join(dir, Digest(data)+".png")
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}
		before, err := os.Stat(path)
		if err != nil {
			t.Fatalf("failed to stat: %v", err)
		}

		_, written, err := s.Persist(data, "image/png", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if written {
			t.Error("expected no write for existing file")
		}
		after, err := os.Stat(path)
		if err != nil {
			t.Fatalf("failed to stat: %v", err)
		}
		if !before.ModTime().Equal(after.ModTime()) {
			t.Error("existing file was modified")
		}
	})

	t.Run("concurrent persists of same bytes", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data := []byte("raced payload")

		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, _, err := s.Persist(data, "image/gif", ""); err != nil {
					t.Errorf("persist failed: %v", err)
				}
			}()
		}
		wg.Wait()

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 file, found %d", len(entries))
		}
		if entries[0].Name() != Digest(data)+".gif" {
			t.Errorf("unexpected file %q", entries[0].Name())
		}
	})

	t.Run("same bytes with different metadata reuse the first file", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data := []byte("bytes served under two names")

		first, written1, err := s.Persist(data, "application/octet-stream", "http://a.test/a.png")
		if err != nil {
			t.Fatalf("first persist failed: %v", err)
		}
		second, written2, err := s.Persist(data, "", "http://b.test/b.jpg")
		if err != nil {
			t.Fatalf("second persist failed: %v", err)
		}

		if !written1 || written2 {
			t.Errorf("expected exactly one write, got %v/%v", written1, written2)
		}
		if first.Filename() != Digest(data)+".png" {
			t.Errorf("first filename = %q", first.Filename())
		}
		if second.Filename() != first.Filename() || second.Path != first.Path {
			t.Errorf("second asset = %q, want %q", second.Filename(), first.Filename())
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected 1 file, found %d", len(entries))
		}
	})

	t.Run("file from an earlier run keeps its extension", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		data := []byte("stored last week")
		if err := os.WriteFile(filepath.Join(dir, Digest(data)+".webp"), data, 0600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		s, err := Open(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		asset, written, err := s.Persist(data, "image/jpeg", "http://a.test/x.jpg")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if written || asset.Extension != ".webp" {
			t.Errorf("got written=%v extension=%q, want reuse of .webp", written, asset.Extension)
		}
	})

	t.Run("concurrent persists with different metadata", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data := []byte("raced payload, many names")
		types := []string{"image/png", "image/jpeg", "image/gif", ""}

		var wg sync.WaitGroup
		names := make([]string, 16)
		for i := range names {
			wg.Add(1)
			go func() {
				defer wg.Done()
				asset, _, err := s.Persist(data, types[i%len(types)], "http://a.test/x.bmp")
				if err != nil {
					t.Errorf("persist failed: %v", err)
					return
				}
				names[i] = asset.Filename()
			}()
		}
		wg.Wait()

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read dir: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 file, found %d", len(entries))
		}
		for _, n := range names {
			if n != entries[0].Name() {
				t.Errorf("asset %q does not name the stored file %q", n, entries[0].Name())
			}
		}
		if s.Written() != 1 || s.Reused() != 15 {
			t.Errorf("counters = %d/%d, want 1/15", s.Written(), s.Reused())
		}
	})

	t.Run("has reports stored files", func(t *testing.T) {
		t.Parallel()

		s, err := Open(t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		asset, _, err := s.Persist([]byte("x"), "", "http://a.test/x.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !s.Has(asset.Filename()) {
			t.Error("expected Has to report stored file")
		}
		if s.Has("missing.png") || s.Has("") {
			t.Error("expected Has to be false for missing names")
		}
	})
}
