package webclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/webclient"
)

func TestClient_Get_ReturnsBodyAndHeaders(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "hello")
		_, _ = io.WriteString(w, "page content")
	}))
	defer ts.Close()

	client, err := webclient.New(webclient.Config{}, logging.NewNop(), ts.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	resp, err := client.Get(context.Background(), ts.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "page content" {
		t.Errorf("body = %q, want 'page content'", resp.Body)
	}
	if resp.Headers.Get("X-Custom") != "hello" {
		t.Errorf("X-Custom = %q, want hello", resp.Headers.Get("X-Custom"))
	}
	if !resp.OK() {
		t.Error("expected OK() for 200")
	}
	if resp.Duration <= 0 {
		t.Error("expected positive duration")
	}
}

func TestClient_Get_SendsIdentifyingUserAgent(t *testing.T) {
	t.Parallel()
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	client, err := webclient.New(webclient.Config{}, logging.NewNop(), ts.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := client.Get(context.Background(), ts.URL, 5*time.Second); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if !strings.Contains(gotUA, "SiteGaugeBot") {
		t.Errorf("user agent %q does not identify the scanner", gotUA)
	}
}

func TestClient_Get_NonOKStatusIsNotAnError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer ts.Close()

	client, err := webclient.New(webclient.Config{}, logging.NewNop(), ts.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := client.Get(context.Background(), ts.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("Get on 418 must not error: %v", err)
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", resp.StatusCode)
	}
	if resp.OK() {
		t.Error("expected OK() false for 418")
	}
}

func TestClient_Get_TimeoutWrapsErrTimeout(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	client, err := webclient.New(webclient.Config{}, logging.NewNop(), ts.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Get(context.Background(), ts.URL, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, webclient.ErrTimeout) {
		t.Errorf("error %v does not wrap ErrTimeout", err)
	}
}

func TestClient_Get_ConnectionRefusedIsPlainError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client, err := webclient.New(webclient.Config{}, logging.NewNop(), ts.Client())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	url := ts.URL
	ts.Close()

	_, err = client.Get(context.Background(), url, 5*time.Second)
	if err == nil {
		t.Fatal("expected connection error")
	}
	if errors.Is(err, webclient.ErrTimeout) {
		t.Errorf("connection refusal must not be labeled a timeout: %v", err)
	}
}

func TestClient_New_NilLoggerRejected(t *testing.T) {
	t.Parallel()
	if _, err := webclient.New(webclient.Config{}, nil, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
