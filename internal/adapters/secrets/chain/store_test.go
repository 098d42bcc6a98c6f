package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bnema/marketwin/internal/domain"
	portmocks "github.com/bnema/marketwin/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "marketwin://acc-1/tiktok/1700000000-7f9c"

func newTestChain(t *testing.T) (*Store, *portmocks.MockSecretStore, *portmocks.MockSecretStore) {
	t.Helper()

	pass := portmocks.NewMockSecretStore(t)
	file := portmocks.NewMockSecretStore(t)
	store, err := New(Backend{Name: "pass", Store: pass}, Backend{Name: "file", Store: file})
	require.NoError(t, err)

	return store, pass, file
}

func notFound(backend string) error {
	return fmt.Errorf("%s get %q: %w", backend, testKey, domain.ErrSecretNotFound)
}

func TestStoreGetStopsAtFirstHit(t *testing.T) {
	t.Parallel()

	store, pass, _ := newTestChain(t)
	pass.EXPECT().Get(mock.Anything, testKey).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetMovesPastMiss(t *testing.T) {
	t.Parallel()

	store, pass, file := newTestChain(t)
	pass.EXPECT().Get(mock.Anything, testKey).Return("", notFound("pass")).Once()
	file.EXPECT().Get(mock.Anything, testKey).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetMovesPastBrokenBackend(t *testing.T) {
	t.Parallel()

	store, pass, file := newTestChain(t)
	pass.EXPECT().Get(mock.Anything, testKey).Return("", errors.New("gpg agent unreachable")).Once()
	file.EXPECT().Get(mock.Anything, testKey).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetMissingEverywhereIsNotFound(t *testing.T) {
	t.Parallel()

	store, pass, file := newTestChain(t)
	pass.EXPECT().Get(mock.Anything, testKey).Return("", notFound("pass")).Once()
	file.EXPECT().Get(mock.Anything, testKey).Return("", notFound("file")).Once()

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, testKey)
}

func TestStoreGetReportsFailureOverMiss(t *testing.T) {
	t.Parallel()

	store, pass, file := newTestChain(t)
	pass.EXPECT().Get(mock.Anything, testKey).Return("", errors.New("gpg agent unreachable")).Once()
	file.EXPECT().Get(mock.Anything, testKey).Return("", notFound("file")).Once()

	_, err := store.Get(context.Background(), testKey)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "pass get: gpg agent unreachable")
}

func TestStoreGetStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	store, pass, _ := newTestChain(t)
	pass.EXPECT().Get(mock.Anything, testKey).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), testKey)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStorePutLandsInFirstWorkingBackend(t *testing.T) {
	t.Parallel()

	store, pass, file := newTestChain(t)
	pass.EXPECT().Put(mock.Anything, testKey, "bundle").Return(errors.New("pass not installed")).Once()
	file.EXPECT().Put(mock.Anything, testKey, "bundle").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), testKey, "bundle"))
}

func TestStorePutSkipsFallbackWhenPrimaryAccepts(t *testing.T) {
	t.Parallel()

	store, pass, _ := newTestChain(t)
	pass.EXPECT().Put(mock.Anything, testKey, "bundle").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), testKey, "bundle"))
}

func TestStorePutJoinsFailures(t *testing.T) {
	t.Parallel()

	store, pass, file := newTestChain(t)
	pass.EXPECT().Put(mock.Anything, testKey, "bundle").Return(errors.New("pass not installed")).Once()
	file.EXPECT().Put(mock.Anything, testKey, "bundle").Return(errors.New("disk full")).Once()

	err := store.Put(context.Background(), testKey, "bundle")
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass put: pass not installed")
	assert.ErrorContains(t, err, "file put: disk full")
}

func TestStoreDeleteClearsEveryBackend(t *testing.T) {
	t.Parallel()

	store, pass, file := newTestChain(t)
	pass.EXPECT().Delete(mock.Anything, testKey).Return(errors.New("pass not installed")).Once()
	file.EXPECT().Delete(mock.Anything, testKey).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), testKey))
}

func TestStoreDeleteFailsWhenNothingCleared(t *testing.T) {
	t.Parallel()

	store, pass, file := newTestChain(t)
	pass.EXPECT().Delete(mock.Anything, testKey).Return(errors.New("pass not installed")).Once()
	file.EXPECT().Delete(mock.Anything, testKey).Return(errors.New("read-only fs")).Once()

	err := store.Delete(context.Background(), testKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass delete")
	assert.ErrorContains(t, err, "file delete: read-only fs")
}

func TestNewValidatesBackends(t *testing.T) {
	t.Parallel()

	_, err := New()
	require.ErrorIs(t, err, errNoBackends)

	_, err = New(Backend{Name: "pass"})
	require.ErrorIs(t, err, errNilBackend)

	_, err = New(Backend{Store: portmocks.NewMockSecretStore(t)})
	require.ErrorIs(t, err, errUnnamedLink)
}
