package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCartCommandsPersistAcrossRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products/p1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"id":"p1","name":"Desk lamp","price":40,"count_in_stock":3}`))
	}))
	defer srv.Close()

	state := filepath.Join(t.TempDir(), "state.db")
	flags := []string{"--api-url", srv.URL, "--state", state}

	if _, err := runCLI(t, append([]string{"cart", "add", "p1", "--qty", "2"}, flags...)...); err != nil {
		t.Fatalf("cart add: %v", err)
	}
	if _, err := runCLI(t, append([]string{"payment", "PayPal"}, flags...)...); err != nil {
		t.Fatalf("payment: %v", err)
	}

	out, err := runCLI(t, append([]string{"cart", "show"}, flags...)...)
	if err != nil {
		t.Fatalf("cart show: %v", err)
	}
	for _, want := range []string{"Desk lamp", "items 80.00", "shipping 10.00", "tax 12.00", "total 102.00", "payment: PayPal"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, append([]string{"cart", "add", "p1", "--qty", "9"}, flags...)...); err == nil || err.Error() != "Invalid quantity" {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
}

func TestCheckoutRequiresLogin(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.db")
	_, err := runCLI(t, "checkout", "--state", state, "--api-url", "http://127.0.0.1:1")
	if err == nil || !strings.Contains(err.Error(), "not signed in") {
		t.Fatalf("expected not signed in error, got %v", err)
	}
}
