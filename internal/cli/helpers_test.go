package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// stubWorker is an HTTP worker that accepts every graph and reports the
// status set for each run.
type stubWorker struct {
	mu       sync.Mutex
	next     int
	statuses map[string]string
	srv      *httptest.Server
}

func newStubWorker(t *testing.T) *stubWorker {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := &stubWorker{statuses: make(map[string]string)}

	r := gin.New()
	r.POST("/pipelines", func(c *gin.Context) {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.next++
		runID := fmt.Sprintf("run-%d", w.next)
		w.statuses[runID] = "RUNNING"
		c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "status": "RUNNING"})
	})
	r.POST("/pipelines/status", func(c *gin.Context) {
		var req struct {
			RunIDs []string `json:"run_ids"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		out := []gin.H{}
		for _, id := range req.RunIDs {
			if st, ok := w.statuses[id]; ok {
				out = append(out, gin.H{"run_id": id, "status": st})
			}
		}
		c.JSON(http.StatusOK, gin.H{"statuses": out})
	})

	w.srv = httptest.NewServer(r)
	t.Cleanup(w.srv.Close)
	return w
}

// writeTestConfig writes a config pointing at a temp store, a temp log
// file and the given worker URLs.
func writeTestConfig(t *testing.T, workerURLs ...string) string {
	t.Helper()
	dir := t.TempDir()

	var body bytes.Buffer
	fmt.Fprintf(&body, "store:\n  path: %s\n", filepath.Join(dir, "records.db"))
	fmt.Fprintf(&body, "log:\n  output: file\n  file_path: %s\n", filepath.Join(dir, "reconcile.log"))
	if len(workerURLs) > 0 {
		body.WriteString("dispatch:\n  workers:\n")
		for i, u := range workerURLs {
			fmt.Fprintf(&body, "    - hostname: w%d\n      url: %s\n", i+1, u)
		}
	}

	path := filepath.Join(dir, "reconcile.yaml")
	require.NoError(t, os.WriteFile(path, body.Bytes(), 0o644))
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
