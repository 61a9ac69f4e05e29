package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"timekeeper/internal/app"
	"timekeeper/internal/clock"
	"timekeeper/internal/config"
	"timekeeper/test/testutil"
)

// writeConfig stores TOML body in a temp dir.
// Params: test handle and config body.
// Returns: absolute config path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "timekeeper.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// newServiceFromConfig creates Service from file config path for e2e scenarios.
// Params: test handle and absolute config path.
// Returns: initialized service instance.
func newServiceFromConfig(t *testing.T, path string) *app.Service {
	t.Helper()

	source, err := config.FromCLI(path, "", "")
	if err != nil {
		t.Fatalf("config source: %v", err)
	}
	service, err := app.NewService(source, clock.RealClock{Location: time.UTC})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

// runService starts service in background with cancellable context.
// Params: test handle and initialized service.
// Returns: cancel callback and done channel with Run result.
func runService(t *testing.T, service *app.Service) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- service.Run(ctx)
	}()
	return cancel, done
}

// waitReady waits for /readyz endpoint to return 200.
func waitReady(t *testing.T, baseURL string) {
	t.Helper()
	waitFor(t, 8*time.Second, func() bool {
		response, err := http.Get(baseURL + "/readyz")
		if err != nil {
			return false
		}
		defer response.Body.Close()
		return response.StatusCode == http.StatusOK
	})
}

// waitServiceStop asserts service Run exits without error after cancellation.
// Params: test handle and done channel returned by runService.
// Returns: test fails if stop timeout/error happens.
func waitServiceStop(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case runErr := <-done:
		if runErr != nil {
			t.Fatalf("service run error: %v", runErr)
		}
	case <-time.After(8 * time.Second):
		t.Fatalf("service did not stop after cancel")
	}
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for condition")
}

func listenURL(t *testing.T) (string, string) {
	t.Helper()
	port, err := testutil.FreePort()
	if err != nil {
		t.Fatalf("free port: %v", err)
	}
	listen := fmt.Sprintf("127.0.0.1:%d", port)
	return listen, "http://" + listen
}

// call sends JSON request and decodes JSON response when out is non-nil.
// Params: test handle, method, URL, request body (nil for none), and decode target.
// Returns: response status code.
func call(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

type notificationsView struct {
	Current *struct {
		ID      string `json:"id"`
		Kind    string `json:"kind"`
		Title   string `json:"title"`
		Message string `json:"message"`
		Options struct {
			Shape        string `json:"shape"`
			ConfirmLabel string `json:"confirmLabel"`
			CancelLabel  string `json:"cancelLabel"`
			Theme        string `json:"theme"`
		} `json:"options"`
	} `json:"current"`
}

type timerListView struct {
	Timers []struct {
		ID          int64 `json:"id"`
		CurrentTime int   `json:"currentTime"`
		TargetTime  int   `json:"targetTime"`
		IsRunning   bool  `json:"isRunning"`
	} `json:"timers"`
	ActiveID *int64 `json:"activeId"`
}
