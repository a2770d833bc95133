package posting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moulimds/transaction-service/internal/transaction"
)

func TestPostSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/transactions" {
			t.Errorf("Path = %s, want /transactions", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	success, errMsg := client.Post(context.Background(), transaction.Transaction{ID: "tx-1", Amount: 10, Currency: "USD", Timestamp: time.Now()})
	if !success {
		t.Fatalf("Post() success = false, errMsg = %q", errMsg)
	}
}

func TestPostFailureReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("downstream exploded"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	success, errMsg := client.Post(context.Background(), transaction.Transaction{ID: "tx-1"})
	if success {
		t.Fatal("Post() success = true, want false")
	}
	if errMsg == "" {
		t.Error("Post() errMsg is empty, want diagnostic text")
	}
}

func TestGetExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/tx-1" {
			t.Errorf("Path = %s, want /transactions/tx-1", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"tx-1","amount":10}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	exists, data := client.Get(context.Background(), "tx-1")
	if !exists {
		t.Fatal("Get() exists = false, want true")
	}
	if data["id"] != "tx-1" {
		t.Errorf("data[id] = %v, want tx-1", data["id"])
	}
}

func TestGetNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	exists, _ := client.Get(context.Background(), "missing")
	if exists {
		t.Fatal("Get() exists = true, want false")
	}
}

func TestGetUnexpectedStatusTreatedAsNotExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	exists, _ := client.Get(context.Background(), "tx-1")
	if exists {
		t.Fatal("Get() exists = true, want false for unexpected status")
	}
}

func TestCleanup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cleanup" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	if !client.Cleanup(context.Background()) {
		t.Error("Cleanup() = false, want true")
	}
}
