package passphrase

import (
	"os"
	"strings"
	"testing"
)

func TestSourceUsesEnvironment(t *testing.T) {
	t.Setenv("BKC_TEST_PASS", "hunter2")
	s := NewSource("BKC_TEST_PASS", "wallet keystore")
	got, err := s.Get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "hunter2" {
		t.Fatalf("got %q", got)
	}
	os.Setenv("BKC_TEST_PASS", "changed")
	if again, _ := s.Get(); again != "hunter2" {
		t.Fatalf("passphrase should be cached, got %q", again)
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	t.Setenv("BKC_TEST_PASS", "   ")
	if _, err := NewSource("BKC_TEST_PASS", "").Get(); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty error, got %v", err)
	}
}

func TestSourceWithoutTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()
	s := NewSource("BKC_TEST_PASS_UNSET", "wallet keystore")
	s.stdin = r
	_, err = s.Get()
	if err == nil || !strings.Contains(err.Error(), "BKC_TEST_PASS_UNSET") {
		t.Fatalf("expected hint about env var, got %v", err)
	}
}
