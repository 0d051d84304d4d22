package repository

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go-damage-sync/pkg/models"
)

type noHeaders struct{}

func (noHeaders) Headers(ctx context.Context) (http.Header, error) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h, nil
}

func TestList_DecodesKeyedRecordsNewestFirst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/user-1/records" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]models.AnalysisRecord{
			"old": {DamageType: "Scratch", CreatedAt: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
			"new": {DamageType: "Dent", CreatedAt: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)},
		})
	}))
	defer server.Close()

	store := NewHTTPRecordStore(server.URL, noHeaders{})
	records, err := store.List(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].ID != "new" || records[1].ID != "old" {
		t.Errorf("Expected newest first, got %q then %q", records[0].ID, records[1].ID)
	}
}

func TestList_AppliesLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]models.AnalysisRecord{
			"a": {CreatedAt: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
			"b": {CreatedAt: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)},
			"c": {CreatedAt: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)},
		})
	}))
	defer server.Close()

	store := NewHTTPRecordStore(server.URL, noHeaders{})
	records, err := store.List(context.Background(), "user-1", 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 || records[0].ID != "c" {
		t.Errorf("Expected the 2 newest records, got %+v", records)
	}
}

func TestCreate_ReturnsAssignedID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		var rec models.AnalysisRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("Undecodable create payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "rec-42"})
	}))
	defer server.Close()

	store := NewHTTPRecordStore(server.URL, noHeaders{})
	id, err := store.Create(context.Background(), "user-1", models.AnalysisRecord{DamageType: "Dent"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id != "rec-42" {
		t.Errorf("Expected assigned ID, got %q", id)
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := NewHTTPRecordStore(server.URL, noHeaders{})
	if _, err := store.List(context.Background(), "user-1", 0); err != nil {
		t.Fatalf("Expected retry to recover, got: %v", err)
	}
	if n := atomic.LoadInt32(&attempts); n != 2 {
		t.Errorf("Expected 2 attempts, got %d", n)
	}
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	store := NewHTTPRecordStore(server.URL, noHeaders{})
	_, err := store.List(context.Background(), "user-1", 0)
	if err == nil {
		t.Fatalf("Expected error for 403")
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Errorf("Expected exactly 1 attempt for a client error, got %d", n)
	}
}

func TestDo_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := NewHTTPRecordStore(server.URL, noHeaders{})
	err := store.Delete(context.Background(), "user-1", "missing")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
}

func TestDo_ExhaustedRetriesWrapUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := NewHTTPRecordStore(server.URL, noHeaders{})
	_, err := store.List(context.Background(), "user-1", 0)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable after exhausted retries, got %v", err)
	}
}
