package testutil

import (
	"net"
	"os/exec"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSServer is one local nats-server process with JetStream enabled.
type NATSServer struct {
	URL string
	cmd *exec.Cmd
}

// FreePort reserves a local TCP port and returns it to the caller.
func FreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// StartNATS launches nats-server for integration tests.
// Params: test handle; the test is skipped when the binary is absent or -short is set.
// Returns: running server, stopped automatically on test cleanup.
func StartNATS(tb testing.TB) *NATSServer {
	tb.Helper()
	if testing.Short() {
		tb.Skip("skip integration test in short mode")
	}
	bin, err := exec.LookPath("nats-server")
	if err != nil {
		tb.Skipf("nats-server is required for integration test: %v", err)
	}

	port, err := FreePort()
	if err != nil {
		tb.Fatalf("free port: %v", err)
	}
	cmd := exec.Command(bin, "-js", "-p", strconv.Itoa(port), "-sd", tb.TempDir())
	if err := cmd.Start(); err != nil {
		tb.Skipf("start nats-server: %v", err)
	}

	srv := &NATSServer{URL: "nats://127.0.0.1:" + strconv.Itoa(port), cmd: cmd}
	tb.Cleanup(srv.stop)
	waitReady(tb, srv.URL, 8*time.Second)
	return srv
}

func (s *NATSServer) stop() {
	if s.cmd.Process == nil {
		return
	}
	_ = s.cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_, _ = s.cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = s.cmd.Process.Kill()
		<-done
	}
}

func waitReady(tb testing.TB, url string, timeout time.Duration) {
	tb.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		nc, err := nats.Connect(url)
		if err == nil {
			nc.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	tb.Fatalf("nats did not become ready at %s", url)
}
