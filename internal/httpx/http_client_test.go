package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewExternalHTTPClientDefaults(t *testing.T) {
	client := NewExternalHTTPClient(ClientConfig{})
	if client.Timeout != defaultExternalHTTPTimeout {
		t.Fatalf("client timeout = %s, want %s", client.Timeout, defaultExternalHTTPTimeout)
	}

	client = NewExternalHTTPClient(ClientConfig{Timeout: 3 * time.Second})
	if client.Timeout != 3*time.Second {
		t.Fatalf("client timeout = %s, want 3s", client.Timeout)
	}
}

func TestExternalHTTPClientSetsUserAgent(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	client := NewExternalHTTPClient(ClientConfig{UserAgent: "rcsync-test/1.0"})

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("User-Agent", "explicit")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	if len(got) != 2 || got[0] != "rcsync-test/1.0" || got[1] != "explicit" {
		t.Fatalf("unexpected user agents: %q", got)
	}
}

func TestTimeoutFromSeconds(t *testing.T) {
	if got := TimeoutFromSeconds(0, 10*time.Second); got != 10*time.Second {
		t.Fatalf("TimeoutFromSeconds(0) = %s, want 10s", got)
	}
	if got := TimeoutFromSeconds(120, 10*time.Second); got != 120*time.Second {
		t.Fatalf("TimeoutFromSeconds(120) = %s, want 2m0s", got)
	}
}
