package mcp

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap"
)

// mockStdioServerScript is a minimal JSON-RPC-over-stdio MCP server: it
// writes a wall of stderr before ever touching stdin, so a client that
// leaves the child's stderr pipe unread would deadlock the moment the OS
// pipe buffer fills and the child blocks on its own stderr write.
const mockStdioServerScript = `#!/bin/sh
awk 'BEGIN{for(i=0;i<4096;i++) printf "x" > "/dev/stderr"}'
while IFS= read -r line; do
  id=$(printf '%s' "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"protocolVersion":"2024-11-05","capabilities":{},"serverInfo":{"name":"mock","version":"0.0.1"}}}\n' "$id"
      ;;
    *'"method":"tools/list"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"tools":[]}}\n' "$id"
      ;;
  esac
done
`

// Stderr deadlock regression (spec.md §8 scenario 5): a mock MCP server
// writes 4 KB of stderr before ever responding on stdout. dial() must still
// complete within its own timeout — a client that fails to drain the
// child's stderr pipe would instead hang once the 64 KB default pipe
// buffer backs up and blocks the child's write(2).
func TestDial_StderrDeadlockRegression(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("mock server script requires a POSIX shell")
	}

	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "mock_mcp_server.sh")
	if err := os.WriteFile(scriptPath, []byte(mockStdioServerScript), 0o755); err != nil {
		t.Fatalf("write mock server script: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entry := serverEntry{Command: "/bin/sh", Args: []string{scriptPath}, Enabled: true}

	done := make(chan struct{})
	var sc *serverClient
	var dialErr error
	go func() {
		defer close(done)
		sc, dialErr = dial(ctx, "mock", entry, zap.NewNop())
	}()

	select {
	case <-done:
		if dialErr != nil {
			t.Fatalf("dial() error = %v, want success despite the stderr flood", dialErr)
		}
		defer sc.close()
	case <-time.After(10 * time.Second):
		t.Fatal("dial() hung — stderr from the child process is likely unread, deadlocking its stdout write")
	}
}
