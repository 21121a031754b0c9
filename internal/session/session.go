package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/secrets"
)

// Session holds the process-wide credential pair.
// It is initialized once on load and cleared on logout; the transport reads it for every request.
type Session struct {
	mu      sync.RWMutex
	access  string
	refresh string

	accessFile  string
	refreshFile string

	logger *zap.Logger
}

func New(logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{logger: logger}
}

// Init loads the access and refresh credentials.
// A missing or unconfigured credential is not an error: requests go out unauthenticated.
func (s *Session) Init(access, refresh secrets.Source) error {
	accessToken, err := loadOptional(access)
	if err != nil {
		return err
	}

	refreshToken, err := loadOptional(refresh)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = accessToken
	s.refresh = refreshToken
	s.accessFile = strings.TrimSpace(access.File)
	s.refreshFile = strings.TrimSpace(refresh.File)

	if s.access == "" {
		s.logger.Debug("no access credential found, requests will be unauthenticated")
	} else {
		s.logger.Debug("session initialized", zap.Bool("refresh_token", s.refresh != ""))
	}

	return nil
}

// Token returns the current access credential or an empty string.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// RefreshToken returns the current refresh credential or an empty string.
func (s *Session) RefreshToken() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// Authenticated reports whether an access credential is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// Teardown clears the in-memory credentials and removes their files.
func (s *Session) Teardown() error {
	s.mu.Lock()
	files := []string{s.accessFile, s.refreshFile}
	s.access = ""
	s.refresh = ""
	s.mu.Unlock()

	var errs error
	for _, file := range files {
		if file == "" {
			continue
		}
		if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = multierr.Append(errs, fmt.Errorf("removing credential file %q: %w", file, err))
			continue
		}
		s.logger.Debug("credential file removed", zap.String("path", file))
	}

	return errs
}

func loadOptional(src secrets.Source) (string, error) {
	if !src.Configured() {
		return "", nil
	}

	token, err := secrets.Load(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, secrets.ErrEmpty) {
			return "", nil
		}
		return "", err
	}

	return token, nil
}
