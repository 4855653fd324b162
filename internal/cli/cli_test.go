package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/alertlog/internal/export"
	"github.com/sadopc/alertlog/internal/feed"
	"github.com/sadopc/alertlog/internal/mockserver"
	"github.com/sadopc/alertlog/internal/store"
)

type env struct {
	srv       *mockserver.Server
	cfgPath   string
	dbPath    string
	backupDir string
}

// newEnv starts a mock server and writes a config file pointing at it.
func newEnv(t *testing.T, seed int) env {
	t.Helper()
	srv := mockserver.New()
	srv.Seed(seed)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	dir := t.TempDir()
	e := env{
		srv:       srv,
		cfgPath:   filepath.Join(dir, "config.toml"),
		dbPath:    filepath.Join(dir, "alertlog.db"),
		backupDir: filepath.Join(dir, "backups"),
	}
	cfg := fmt.Sprintf(`
[server]
base_url = %q
live_url = %q

[timeouts]
request = "5s"
connect = "5s"

[reconnect]
initial = "20ms"
max = "100ms"

[logging]
file = %q

[storage]
db_path = %q
backup_dir = %q
`, ts.URL, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/logs",
		filepath.Join(dir, "alertlog.log"), e.dbPath, e.backupDir)
	if err := os.WriteFile(e.cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return e
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgFile, verbose = "", false
	backupDir, backupCompress = "", false
	sendCategory = string(feed.CategoryApp)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// ============================================================
// version
// ============================================================

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "alertlog v"+Version) {
		t.Fatalf("unexpected output %q", out)
	}
}

// ============================================================
// backup / restore
// ============================================================

func TestBackupPagesThroughFeed(t *testing.T) {
	e := newEnv(t, 35)

	out, err := execute(t, "--config", e.cfgPath, "backup", "--compress")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Backed up 35 logs") {
		t.Fatalf("unexpected output %q", out)
	}

	st, err := store.New(e.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	backups, _ := st.ListBackups(0)
	if len(backups) != 1 || backups[0].RecordCount != 35 || !backups[0].Compressed {
		t.Fatalf("backups = %+v", backups)
	}
	if filepath.Dir(backups[0].Path) != e.backupDir {
		t.Fatalf("backup written to %s", backups[0].Path)
	}

	raw, err := export.ReadRestore(backups[0].Path)
	if err != nil {
		t.Fatal(err)
	}
	if n := export.CountItems(raw); n != 35 {
		t.Fatalf("backup holds %d items", n)
	}
}

func TestBackupDirFlag(t *testing.T) {
	e := newEnv(t, 3)
	dir := t.TempDir()

	if _, err := execute(t, "--config", e.cfgPath, "backup", "--dir", dir); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "logs_backup_*.json"))
	if len(matches) != 1 {
		t.Fatalf("expected one backup in %s, got %v", dir, matches)
	}
}

func TestBackupEmptyFeed(t *testing.T) {
	e := newEnv(t, 0)
	_, err := execute(t, "--config", e.cfgPath, "backup")
	if !errors.Is(err, export.ErrNothingToBackup) {
		t.Fatalf("err = %v, want ErrNothingToBackup", err)
	}
}

func TestRestoreIntoEmptyServer(t *testing.T) {
	src := newEnv(t, 12)
	if _, err := execute(t, "--config", src.cfgPath, "backup"); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(src.backupDir, "logs_backup_*.json"))
	if len(matches) != 1 {
		t.Fatalf("backups = %v", matches)
	}

	dst := newEnv(t, 0)
	out, err := execute(t, "--config", dst.cfgPath, "restore", matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Imported 12 logs") {
		t.Fatalf("unexpected output %q", out)
	}
	if got := len(dst.srv.Logs()); got != 12 {
		t.Fatalf("server has %d logs after restore", got)
	}
}

func TestRestoreRejectsObject(t *testing.T) {
	e := newEnv(t, 0)
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{"logs": []}`), 0o644)

	_, err := execute(t, "--config", e.cfgPath, "restore", path)
	if !errors.Is(err, feed.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestRestoreNeedsFile(t *testing.T) {
	if _, err := execute(t, "restore"); err == nil {
		t.Fatal("expected argument error")
	}
}

// ============================================================
// send
// ============================================================

func TestSendOverLiveChannel(t *testing.T) {
	e := newEnv(t, 0)

	out, err := execute(t, "--config", e.cfgPath, "send", "--category", "SMS", "hello", "world")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Sent") {
		t.Fatalf("unexpected output %q", out)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, r := range e.srv.Logs() {
			if r.Content == "hello world" {
				if r.Category != feed.CategorySMS {
					t.Fatalf("category = %q", r.Category)
				}
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server never stored the sent log")
}

func TestSendBlankContent(t *testing.T) {
	e := newEnv(t, 0)
	if _, err := execute(t, "--config", e.cfgPath, "send", "  "); err == nil {
		t.Fatal("expected error for blank content")
	}
}

// ============================================================
// config
// ============================================================

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	os.WriteFile(path, []byte("[server]\npage_size = 500\n"), 0o644)

	if _, err := execute(t, "--config", path, "backup"); err == nil {
		t.Fatal("expected config error")
	}
}

func TestMissingConfig(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "nope.toml"), "backup")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v", err)
	}
}
