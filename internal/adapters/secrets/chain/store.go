package chain

import (
	"context"
	"errors"
	"fmt"

	filestore "github.com/bnema/marketwin/internal/adapters/secrets/file"
	passstore "github.com/bnema/marketwin/internal/adapters/secrets/pass"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
)

// Backend is one named link of a chain.
type Backend struct {
	Name  string
	Store ports.SecretStore
}

// Store walks its backends in order. Put lands in the first backend that
// accepts the bundle, Get returns the first copy found, and Delete clears
// every backend since a bundle may have landed in any of them.
type Store struct {
	backends []Backend
}

var _ ports.SecretStore = (*Store)(nil)

var (
	errNoBackends  = errors.New("secret chain needs at least one backend")
	errNilBackend  = errors.New("secret chain backend is nil")
	errUnnamedLink = errors.New("secret chain backend has no name")
)

func New(backends ...Backend) (*Store, error) {
	if len(backends) == 0 {
		return nil, errNoBackends
	}
	for i, backend := range backends {
		if backend.Store == nil {
			return nil, fmt.Errorf("backend %d: %w", i, errNilBackend)
		}
		if backend.Name == "" {
			return nil, fmt.Errorf("backend %d: %w", i, errUnnamedLink)
		}
	}

	return &Store{backends: append([]Backend(nil), backends...)}, nil
}

// NewPassWithFileFallback prefers the pass password store and keeps a file
// copy when pass is missing or broken.
func NewPassWithFileFallback(fileRoot string) (*Store, error) {
	return New(
		Backend{Name: "pass", Store: passstore.NewStore()},
		Backend{Name: "file", Store: filestore.NewStore(fileRoot)},
	)
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	var errs []error
	for _, backend := range s.backends {
		err := backend.Store.Put(ctx, key, value)
		if err == nil {
			return nil
		}
		if isContextError(err) {
			return err
		}
		errs = append(errs, fmt.Errorf("%s put: %w", backend.Name, err))
	}

	return errors.Join(errs...)
}

// Get treats ErrSecretNotFound as a miss and moves on. It reports
// ErrSecretNotFound only when every backend missed; if any backend failed
// the secret may still exist there, so the failures are returned instead.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var failures []error
	for _, backend := range s.backends {
		value, err := backend.Store.Get(ctx, key)
		switch {
		case err == nil:
			return value, nil
		case isContextError(err):
			return "", err
		case errors.Is(err, domain.ErrSecretNotFound):
			continue
		default:
			failures = append(failures, fmt.Errorf("%s get: %w", backend.Name, err))
		}
	}

	if len(failures) > 0 {
		return "", errors.Join(failures...)
	}
	return "", fmt.Errorf("credential %q: %w", key, domain.ErrSecretNotFound)
}

// Delete reports an error only when no backend could be cleared.
func (s *Store) Delete(ctx context.Context, key string) error {
	var errs []error
	cleared := false
	for _, backend := range s.backends {
		err := backend.Store.Delete(ctx, key)
		switch {
		case err == nil:
			cleared = true
		case isContextError(err):
			return err
		default:
			errs = append(errs, fmt.Errorf("%s delete: %w", backend.Name, err))
		}
	}

	if cleared {
		return nil
	}
	return errors.Join(errs...)
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
