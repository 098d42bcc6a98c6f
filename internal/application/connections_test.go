package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/marketwin/internal/adapters/repo/memory"
	"github.com/bnema/marketwin/internal/adapters/secrets/file"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
	"github.com/bnema/marketwin/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type registryFixture struct {
	*fixture
	store    *file.Store
	registry *ConnectionRegistry
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()

	f := newFixture(t)
	store := file.NewStore(t.TempDir())
	return &registryFixture{
		fixture:  f,
		store:    store,
		registry: NewConnectionRegistry(f.repo, store, newTestClock(t, f.now)),
	}
}

func (f *registryFixture) secretRef(t *testing.T, id domain.AccountID, platform domain.Platform) string {
	t.Helper()

	account, err := f.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	ref := account.Connections.Get(platform).SecretRef
	require.NotEmpty(t, ref)
	return ref
}

type failingUpdateRepo struct {
	ports.AccountRepository
	err error
}

func (r failingUpdateRepo) Update(context.Context, domain.AccountID, ports.UpdateFunc) (domain.Account, error) {
	return domain.Account{}, r.err
}

func linkedInBundle(token string, expiry time.Time) domain.CredentialBundle {
	return domain.CredentialBundle{
		AccessToken:  token,
		RefreshToken: "refresh-" + token,
		Identifiers:  map[string]string{"profile_id": "urn:li:person:42"},
		Expiry:       &expiry,
	}
}

func TestConnectionRegistryConnectAndDisconnect(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanLocalBoost)
	ctx := context.Background()

	connected, err := f.registry.IsConnected(ctx, "acc-1", domain.PlatformLinkedIn)
	require.NoError(t, err)
	assert.False(t, connected)

	bundle := linkedInBundle("tok-1", march10.Add(time.Hour))
	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformLinkedIn, bundle))

	connected, err = f.registry.IsConnected(ctx, "acc-1", domain.PlatformLinkedIn)
	require.NoError(t, err)
	assert.True(t, connected)

	account, err := f.repo.GetByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Platform{domain.PlatformLinkedIn}, account.Connections.Platforms)
	conn := account.Connections.Get(domain.PlatformLinkedIn)
	assert.True(t, strings.HasPrefix(conn.SecretRef, fmt.Sprintf("marketwin://acc-1/linkedin/%d-", march10.UnixNano())), conn.SecretRef)
	assert.Equal(t, map[string]string{"profile_id": "urn:li:person:42"}, conn.Identifiers)

	got, err := f.registry.Credential(ctx, "acc-1", domain.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, bundle.AccessToken, got.AccessToken)
	assert.Equal(t, bundle.RefreshToken, got.RefreshToken)

	require.NoError(t, f.registry.Disconnect(ctx, "acc-1", domain.PlatformLinkedIn))

	account, err = f.repo.GetByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, account.Connections.Platforms)
	assert.Equal(t, domain.PlatformConnection{}, account.Connections.Get(domain.PlatformLinkedIn))

	_, err = f.store.Get(ctx, conn.SecretRef)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	_, err = f.registry.Credential(ctx, "acc-1", domain.PlatformLinkedIn)
	require.ErrorIs(t, err, domain.ErrPlatformNotConnected)
}

func TestConnectionRegistryDisconnectIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	created := f.createAccount(t, "acc-1", domain.PlanFree)
	ctx := context.Background()

	require.NoError(t, f.registry.Disconnect(ctx, "acc-1", domain.PlatformTikTok))
	require.NoError(t, f.registry.Disconnect(ctx, "acc-1", domain.PlatformTikTok))

	account, err := f.repo.GetByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, created.UpdatedAt, account.UpdatedAt)
	assert.Empty(t, account.Connections.Platforms)
}

func TestConnectionRegistryReconnectReplacesPreviousCredential(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanScale)
	ctx := context.Background()

	first := domain.CredentialBundle{AccessToken: "old", Identifiers: map[string]string{"page_id": "p-1"}}
	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformFacebook, first))
	firstRef := f.secretRef(t, "acc-1", domain.PlatformFacebook)

	*f.now = f.now.Add(time.Minute)
	second := domain.CredentialBundle{AccessToken: "new", Identifiers: map[string]string{"page_id": "p-2"}}
	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformFacebook, second))

	_, err := f.store.Get(ctx, firstRef)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	got, err := f.registry.Credential(ctx, "acc-1", domain.PlatformFacebook)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "p-2", got.Identifiers["page_id"])
}

func TestConnectionRegistryRejectsBadInput(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanScale)
	ctx := context.Background()

	tests := []struct {
		name     string
		platform domain.Platform
		bundle   domain.CredentialBundle
		wantErr  error
	}{
		{
			name:     "unsupported platform",
			platform: "myspace",
			bundle:   domain.CredentialBundle{AccessToken: "tok"},
			wantErr:  domain.ErrUnsupportedPlatform,
		},
		{
			name:     "missing access token",
			platform: domain.PlatformTwitter,
			bundle:   domain.CredentialBundle{Identifiers: map[string]string{"user_id": "u"}},
			wantErr:  domain.ErrInvalidCredential,
		},
		{
			name:     "missing identifier",
			platform: domain.PlatformInstagram,
			bundle:   domain.CredentialBundle{AccessToken: "tok"},
			wantErr:  domain.ErrInvalidCredential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.registry.Connect(ctx, "acc-1", tt.platform, tt.bundle)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.registry.IsConnected(ctx, "acc-1", "myspace")
	require.ErrorIs(t, err, domain.ErrUnsupportedPlatform)
	require.ErrorIs(t, f.registry.Disconnect(ctx, "acc-1", "myspace"), domain.ErrUnsupportedPlatform)

	account, err := f.repo.GetByID(ctx, "acc-1")
	require.NoError(t, err)
	assert.Empty(t, account.Connections.Platforms)
}

func TestConnectionRegistryDropsExpiryForNonExpiringPlatforms(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanScale)
	ctx := context.Background()

	past := march10.Add(-time.Hour)
	bundle := domain.CredentialBundle{AccessToken: "tok", Identifiers: map[string]string{"user_id": "u-1"}, Expiry: &past}
	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformThreads, bundle))

	got, err := f.registry.Credential(ctx, "acc-1", domain.PlatformThreads)
	require.NoError(t, err)
	assert.Nil(t, got.Expiry)
}

func TestConnectionRegistryCredentialExpired(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanScale)
	ctx := context.Background()

	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformTikTok, domain.CredentialBundle{
		AccessToken: "tok",
		Identifiers: map[string]string{"user_id": "u-1"},
		Expiry:      ptrTime(march10.Add(time.Hour)),
	}))

	*f.now = march10.Add(2 * time.Hour)

	_, err := f.registry.Credential(ctx, "acc-1", domain.PlatformTikTok)
	require.ErrorIs(t, err, domain.ErrCredentialExpired)

	connected, err := f.registry.IsConnected(ctx, "acc-1", domain.PlatformTikTok)
	require.NoError(t, err)
	assert.True(t, connected)
}

func TestConnectionRegistryStatusListsEveryPlatform(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanScale)
	ctx := context.Background()

	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformTwitter, domain.CredentialBundle{
		AccessToken: "tok",
		Identifiers: map[string]string{"user_id": "u-1"},
	}))

	statuses, err := f.registry.Status(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, statuses, len(domain.Platforms()))
	for i, status := range statuses {
		assert.Equal(t, domain.Platforms()[i], status.Platform)
		assert.Equal(t, status.Platform == domain.PlatformTwitter, status.Connected)
	}
}

func TestConnectionRegistryConnectRollsBackSecretWhenSaveFails(t *testing.T) {
	t.Parallel()

	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	now := march10
	registry := NewConnectionRegistry(repo, store, newTestClock(t, &now))
	registry.nonce = func() string { return "n-1" }

	saveErr := errors.New("disk full")
	key := CredentialKey("acc-1", domain.PlatformTwitter, now.UnixNano(), "n-1")

	store.EXPECT().Put(mockAnyContext(), key, mock.AnythingOfType("string")).Return(nil).Once()
	repo.EXPECT().Update(mockAnyContext(), domain.AccountID("acc-1"), mock.Anything).Return(domain.Account{}, saveErr).Once()
	store.EXPECT().Delete(mockAnyContext(), key).Return(nil).Once()

	err := registry.Connect(context.Background(), "acc-1", domain.PlatformTwitter, domain.CredentialBundle{
		AccessToken: "tok",
		Identifiers: map[string]string{"user_id": "u-1"},
	})
	require.ErrorIs(t, err, saveErr)
}

func TestConnectionRegistryConnectStoreFailureLeavesAccountUntouched(t *testing.T) {
	t.Parallel()

	repo := mocks.NewMockAccountRepository(t)
	store := mocks.NewMockSecretStore(t)
	now := march10
	registry := NewConnectionRegistry(repo, store, newTestClock(t, &now))

	putErr := errors.New("keyring locked")
	store.EXPECT().Put(mockAnyContext(), mock.Anything, mock.Anything).Return(putErr).Once()

	err := registry.Connect(context.Background(), "acc-1", domain.PlatformTwitter, domain.CredentialBundle{
		AccessToken: "tok",
		Identifiers: map[string]string{"user_id": "u-1"},
	})
	require.ErrorIs(t, err, putErr)
}

func TestConnectionRegistryDisconnectRestoresConnectionWhenDeleteFails(t *testing.T) {
	t.Parallel()

	now := march10
	repo := memory.NewRepository()
	require.NoError(t, repo.Create(context.Background(), domain.Account{ID: "acc-1", Connections: domain.NewConnections()}))

	store := mocks.NewMockSecretStore(t)
	registry := NewConnectionRegistry(repo, store, newTestClock(t, &now))
	ctx := context.Background()

	store.EXPECT().Put(mockAnyContext(), mock.Anything, mock.Anything).Return(nil).Once()
	require.NoError(t, registry.Connect(ctx, "acc-1", domain.PlatformTwitter, domain.CredentialBundle{
		AccessToken: "tok",
		Identifiers: map[string]string{"user_id": "u-1"},
	}))

	deleteErr := errors.New("permission denied")
	store.EXPECT().Delete(mockAnyContext(), mock.Anything).Return(deleteErr).Once()

	err := registry.Disconnect(ctx, "acc-1", domain.PlatformTwitter)
	require.ErrorIs(t, err, deleteErr)

	connected, err := registry.IsConnected(ctx, "acc-1", domain.PlatformTwitter)
	require.NoError(t, err)
	assert.True(t, connected)
}

func TestConnectionRegistryConcurrentConnectDisconnect(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanScale)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			errs <- f.registry.Connect(ctx, "acc-1", domain.PlatformFacebook, domain.CredentialBundle{
				AccessToken: fmt.Sprintf("tok-%d", i),
				Identifiers: map[string]string{"page_id": "p-1"},
			})
		}(i)
		go func() {
			defer wg.Done()
			errs <- f.registry.Disconnect(ctx, "acc-1", domain.PlatformFacebook)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	account, err := f.repo.GetByID(ctx, "acc-1")
	require.NoError(t, err)
	conn := account.Connections.Get(domain.PlatformFacebook)
	assert.Equal(t, conn.Connected, account.Connections.IsConnected(domain.PlatformFacebook))
	assert.Equal(t, conn.Connected, len(account.Connections.Platforms) == 1)
	if conn.Connected {
		_, err := f.store.Get(ctx, conn.SecretRef)
		require.NoError(t, err)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestConnectionRegistryRefreshReplacesExpiredCredential(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanScale)
	ctx := context.Background()

	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformLinkedIn, linkedInBundle("old", march10.Add(time.Hour))))
	oldRef := f.secretRef(t, "acc-1", domain.PlatformLinkedIn)

	*f.now = march10.Add(2 * time.Hour)
	_, err := f.registry.Credential(ctx, "acc-1", domain.PlatformLinkedIn)
	require.ErrorIs(t, err, domain.ErrCredentialExpired)

	err = f.registry.Refresh(ctx, "acc-1", domain.PlatformLinkedIn, func(_ context.Context, current domain.CredentialBundle) (domain.CredentialBundle, error) {
		assert.Equal(t, "old", current.AccessToken)
		return linkedInBundle("new", f.now.Add(time.Hour)), nil
	})
	require.NoError(t, err)

	got, err := f.registry.Credential(ctx, "acc-1", domain.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)

	_, err = f.store.Get(ctx, oldRef)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	renewErr := errors.New("invalid_grant")
	err = f.registry.Refresh(ctx, "acc-1", domain.PlatformLinkedIn, func(context.Context, domain.CredentialBundle) (domain.CredentialBundle, error) {
		return domain.CredentialBundle{}, renewErr
	})
	require.ErrorIs(t, err, renewErr)

	err = f.registry.Refresh(ctx, "acc-1", domain.PlatformTikTok, func(context.Context, domain.CredentialBundle) (domain.CredentialBundle, error) {
		t.Fatal("renew must not run for a disconnected platform")
		return domain.CredentialBundle{}, nil
	})
	require.ErrorIs(t, err, domain.ErrPlatformNotConnected)
}

func TestConnectionRegistryReconnectInSameTickGetsFreshKey(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanScale)
	ctx := context.Background()

	first := domain.CredentialBundle{AccessToken: "old", Identifiers: map[string]string{"page_id": "p-1"}}
	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformFacebook, first))
	firstRef := f.secretRef(t, "acc-1", domain.PlatformFacebook)

	second := domain.CredentialBundle{AccessToken: "new", Identifiers: map[string]string{"page_id": "p-1"}}
	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformFacebook, second))
	secondRef := f.secretRef(t, "acc-1", domain.PlatformFacebook)

	assert.NotEqual(t, firstRef, secondRef)
	prefix := fmt.Sprintf("marketwin://acc-1/facebook/%d-", march10.UnixNano())
	assert.True(t, strings.HasPrefix(firstRef, prefix), firstRef)
	assert.True(t, strings.HasPrefix(secondRef, prefix), secondRef)

	_, err := f.store.Get(ctx, firstRef)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	got, err := f.registry.Credential(ctx, "acc-1", domain.PlatformFacebook)
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
}

func TestConnectionRegistryFailedReconnectKeepsLiveCredential(t *testing.T) {
	t.Parallel()

	f := newRegistryFixture(t)
	f.createAccount(t, "acc-1", domain.PlanScale)
	ctx := context.Background()

	live := domain.CredentialBundle{AccessToken: "live", Identifiers: map[string]string{"page_id": "p-1"}}
	require.NoError(t, f.registry.Connect(ctx, "acc-1", domain.PlatformFacebook, live))
	liveRef := f.secretRef(t, "acc-1", domain.PlatformFacebook)

	saveErr := errors.New("disk full")
	broken := NewConnectionRegistry(failingUpdateRepo{AccountRepository: f.repo, err: saveErr}, f.store, newTestClock(t, f.now))
	broken.nonce = func() string { return "n-2" }

	replacement := domain.CredentialBundle{AccessToken: "replacement", Identifiers: map[string]string{"page_id": "p-1"}}
	err := broken.Connect(ctx, "acc-1", domain.PlatformFacebook, replacement)
	require.ErrorIs(t, err, saveErr)

	_, err = f.store.Get(ctx, CredentialKey("acc-1", domain.PlatformFacebook, march10.UnixNano(), "n-2"))
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	assert.Equal(t, liveRef, f.secretRef(t, "acc-1", domain.PlatformFacebook))
	got, err := f.registry.Credential(ctx, "acc-1", domain.PlatformFacebook)
	require.NoError(t, err)
	assert.Equal(t, "live", got.AccessToken)
}
