// Package integration provides end-to-end tests that run the hlsladder
// binary against real ffmpeg encodes.
package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

// TestHarness manages the binary, its scratch space and any preview server
// started by a test.
type TestHarness struct {
	t        *testing.T
	binary   string
	tempDir  string
	serveCmd *exec.Cmd
	cancel   context.CancelFunc
}

// NewTestHarness skips the test in short mode or when the toolchain it
// needs is not installed.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not found in PATH", tool)
		}
	}

	h := &TestHarness{t: t, tempDir: t.TempDir()}
	h.binary = h.findBinary()
	return h
}

// HasMp4Dump reports whether CODECS can be resolved on this machine.
func HasMp4Dump() bool {
	_, err := exec.LookPath("mp4dump")
	return err == nil
}

// Path returns name inside the harness temp directory.
func (h *TestHarness) Path(name string) string {
	return filepath.Join(h.tempDir, name)
}

// MakeSource encodes a synthetic test clip and returns its path.
func (h *TestHarness) MakeSource(name string, width, height int, seconds float64, withAudio bool) string {
	h.t.Helper()

	out := h.Path(name)
	dur := strconv.FormatFloat(seconds, 'f', -1, 64)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "lavfi", "-i", fmt.Sprintf("testsrc2=size=%dx%d:rate=24:duration=%s", width, height, dur),
	}
	if withAudio {
		args = append(args, "-f", "lavfi", "-i", "sine=frequency=440:duration="+dur)
	}
	args = append(args, "-c:v", "libx264", "-pix_fmt", "yuv420p")
	if withAudio {
		args = append(args, "-c:a", "aac", "-shortest")
	}
	args = append(args, out)

	cmd := exec.Command("ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		h.t.Fatalf("failed to create test source: %v\n%s", err, output)
	}
	return out
}

// Result is the outcome of one hlsladder invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes hlsladder with args and waits for it to exit.
func (h *TestHarness) Run(args ...string) Result {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.binary, args...)
	cmd.Dir = h.tempDir
	cmd.Env = append(os.Environ(), "HOME="+h.tempDir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := Result{}
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		h.t.Fatalf("failed to run hlsladder: %v", err)
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	return res
}

// StartServe runs "hlsladder serve dir" and returns the base URL once the
// health endpoint answers.
func (h *TestHarness) StartServe(dir string) string {
	h.t.Helper()

	port := findAvailablePort(h.t)
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	h.serveCmd = exec.CommandContext(ctx, h.binary, "serve", "--port", strconv.Itoa(port), dir)
	h.serveCmd.Env = append(os.Environ(), "HOME="+h.tempDir)
	h.serveCmd.Stdout = os.Stdout
	h.serveCmd.Stderr = os.Stderr

	if err := h.serveCmd.Start(); err != nil {
		h.t.Fatalf("failed to start hlsladder serve: %v", err)
	}

	base := fmt.Sprintf("http://localhost:%d", port)
	h.waitForServer(base+"/health", 10*time.Second)
	h.t.Logf("preview server started on port %d", port)
	return base
}

// Fetch returns the body and content type of url.
func (h *TestHarness) Fetch(url string) (string, string) {
	h.t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		h.t.Fatalf("failed to fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.t.Fatalf("unexpected status code for %s: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("failed to read %s: %v", url, err)
	}
	return string(body), resp.Header.Get("Content-Type")
}

// Cleanup stops the preview server, if any.
func (h *TestHarness) Cleanup() {
	h.t.Helper()

	if h.cancel != nil {
		h.cancel()
	}
	if h.serveCmd != nil && h.serveCmd.Process != nil {
		h.serveCmd.Process.Kill()
		h.serveCmd.Wait()
	}
}

// findBinary locates a prebuilt hlsladder binary.
func (h *TestHarness) findBinary() string {
	h.t.Helper()

	candidates := []string{
		"../../hlsladder",           // From test/integration
		"./hlsladder",               // From project root
		"../hlsladder",              // From test directory
		"./cmd/hlsladder/hlsladder", // Built in place
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, _ := filepath.Abs(path)
			h.t.Logf("Found hlsladder binary at: %s", absPath)
			return absPath
		}
	}

	h.t.Skip("hlsladder binary not found. Run 'go build -o hlsladder ./cmd/hlsladder' first")
	return ""
}

// waitForServer waits for a server to become available.
func (h *TestHarness) waitForServer(url string, timeout time.Duration) {
	h.t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	h.t.Fatalf("server at %s did not become available within %v", url, timeout)
}

// findAvailablePort finds an available TCP port.
func findAvailablePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to find available port: %v", err)
	}
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
