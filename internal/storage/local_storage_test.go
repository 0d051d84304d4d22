package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	data := []byte("fake image bytes")
	url, err := store.Upload(context.Background(), "users/u/analyses/1.jpg", data, "image/jpeg")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if !strings.HasPrefix(url, "file://") {
		t.Errorf("Expected file:// URL, got %q", url)
	}

	got, err := store.Download(context.Background(), "users/u/analyses/1.jpg")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Round trip mismatch: got %q", got)
	}
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage failed: %v", err)
	}

	if _, err := store.Download(context.Background(), "nope.jpg"); err == nil {
		t.Errorf("Expected error for a missing blob")
	}
}
