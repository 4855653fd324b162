package logging

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func resetLogger(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
	})
}

func TestSetupWritesFile(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "sub", "alertlog.log")

	closer, err := Setup(path, "warn", false)
	if err != nil {
		t.Fatal(err)
	}
	For("test").Info("hidden")
	For("test").Warn("shown")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "shown") || !strings.Contains(out, "component=test") {
		t.Fatalf("log file = %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatal("info entry written at warn level")
	}
}

func TestSetupVerboseForcesDebug(t *testing.T) {
	resetLogger(t)
	closer, err := Setup("", "error", true)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("level = %v, want debug", log.GetLevel())
	}
}

func TestSetupBadLevelFallsBack(t *testing.T) {
	resetLogger(t)
	closer, err := Setup("", "loud", false)
	if err != nil {
		t.Fatal(err)
	}
	defer closer.Close()
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("level = %v, want info", log.GetLevel())
	}
}

// ============================================================
// NoticeHook
// ============================================================

func newHookedLogger(ch chan Notice) *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	l.AddHook(NewNoticeHook(ch))
	return l
}

func TestNoticeHookForwardsWarnings(t *testing.T) {
	ch := make(chan Notice, 4)
	l := newHookedLogger(ch)

	l.Info("not forwarded")
	l.WithError(errors.New("refused")).Warn("request failed")

	select {
	case n := <-ch:
		if n.Level != log.WarnLevel || n.Message != "request failed: refused" {
			t.Fatalf("notice = %+v", n)
		}
	default:
		t.Fatal("expected a notice")
	}
	if len(ch) != 0 {
		t.Fatal("info entry should not be forwarded")
	}
}

func TestNoticeHookDropsWhenFull(t *testing.T) {
	ch := make(chan Notice, 1)
	l := newHookedLogger(ch)

	l.Error("first")
	l.Error("second") // must not block

	if n := <-ch; n.Message != "first" {
		t.Fatalf("notice = %+v", n)
	}
}
