package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/secrets"
)

func TestInitAndTeardown(t *testing.T) {
	dir := t.TempDir()
	accessFile := filepath.Join(dir, "access_token")
	refreshFile := filepath.Join(dir, "refresh_token")

	if err := os.WriteFile(accessFile, []byte("access\n"), 0o600); err != nil {
		t.Fatalf("write access token: %v", err)
	}
	if err := os.WriteFile(refreshFile, []byte("refresh\n"), 0o600); err != nil {
		t.Fatalf("write refresh token: %v", err)
	}

	s := New(zap.NewNop())
	if err := s.Init(
		secrets.Source{Name: "access token", File: accessFile},
		secrets.Source{Name: "refresh token", File: refreshFile},
	); err != nil {
		t.Fatalf("init: %v", err)
	}

	if s.Token() != "access" || s.RefreshToken() != "refresh" {
		t.Fatalf("unexpected credentials: %q / %q", s.Token(), s.RefreshToken())
	}
	if !s.Authenticated() {
		t.Fatalf("expected session to be authenticated")
	}

	if err := s.Teardown(); err != nil {
		t.Fatalf("teardown: %v", err)
	}

	if s.Authenticated() {
		t.Fatalf("expected credentials to be cleared")
	}
	for _, f := range []string{accessFile, refreshFile} {
		if _, err := os.Stat(f); !errors.Is(err, fs.ErrNotExist) {
			t.Fatalf("expected %s to be removed, got %v", f, err)
		}
	}

	// Second teardown is a no-op.
	if err := s.Teardown(); err != nil {
		t.Fatalf("repeated teardown: %v", err)
	}
}

func TestInitWithoutCredentials(t *testing.T) {
	s := New(nil)

	missing := filepath.Join(t.TempDir(), "absent")
	if err := s.Init(secrets.Source{File: missing}, secrets.Source{}); err != nil {
		t.Fatalf("missing credential must not fail init: %v", err)
	}
	if s.Authenticated() {
		t.Fatalf("expected unauthenticated session")
	}

	var nilSession *Session
	if nilSession.Token() != "" {
		t.Fatalf("nil session must have no token")
	}
}

func TestTeardownReportsEveryFailure(t *testing.T) {
	dir := t.TempDir()
	files := []string{filepath.Join(dir, "access_token"), filepath.Join(dir, "refresh_token")}
	for _, f := range files {
		if err := os.WriteFile(f, []byte("token"), 0o600); err != nil {
			t.Fatalf("write token: %v", err)
		}
	}

	s := New(zap.NewNop())
	if err := s.Init(secrets.Source{File: files[0]}, secrets.Source{File: files[1]}); err != nil {
		t.Fatalf("init: %v", err)
	}

	// A non-empty directory in place of a credential file cannot be removed.
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if err := os.MkdirAll(filepath.Join(f, "child"), 0o700); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}

	err := s.Teardown()
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 errors, got %d (%v)", got, err)
	}
	if s.Authenticated() {
		t.Fatalf("credentials must be cleared even when files stay")
	}
}
