package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
	"github.com/google/uuid"
)

const credentialKeyScheme = "marketwin://"

var errConnectionUnchanged = errors.New("connection unchanged")

// ConnectionRegistry owns the platform connections of every account. Token
// material lives in the secret store; the account only keeps a reference.
type ConnectionRegistry struct {
	repo  ports.AccountRepository
	store ports.SecretStore
	clock ports.Clock
	locks *keyedMutex
	nonce func() string
}

func NewConnectionRegistry(repo ports.AccountRepository, store ports.SecretStore, clock ports.Clock) *ConnectionRegistry {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &ConnectionRegistry{
		repo:  repo,
		store: store,
		clock: clock,
		locks: newKeyedMutex(),
		nonce: uuid.NewString,
	}
}

// CredentialKey names one stored bundle. The nonce keeps two connects in the
// same clock tick, or from two processes, from sharing a key.
func CredentialKey(id domain.AccountID, platform domain.Platform, version int64, nonce string) string {
	return fmt.Sprintf("%s%s/%s/%d-%s", credentialKeyScheme, id, platform, version, nonce)
}

func lockKey(id domain.AccountID, platform domain.Platform) string {
	return string(id) + "/" + string(platform)
}

func (r *ConnectionRegistry) IsConnected(ctx context.Context, id domain.AccountID, platform domain.Platform) (bool, error) {
	if _, err := domain.SpecFor(platform); err != nil {
		return false, err
	}

	account, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get account by id: %w", err)
	}

	return account.Connections.IsConnected(platform), nil
}

// Connect stores bundle and marks platform connected, replacing any earlier
// connection.
func (r *ConnectionRegistry) Connect(ctx context.Context, id domain.AccountID, platform domain.Platform, bundle domain.CredentialBundle) error {
	spec, err := domain.SpecFor(platform)
	if err != nil {
		return err
	}
	if err := bundle.Validate(spec.Credentials); err != nil {
		return err
	}
	if !spec.Credentials.Expires {
		bundle.Expiry = nil
	}

	unlock := r.locks.Lock(lockKey(id, platform))
	defer unlock()

	now := r.clock.Now()
	secretKey := CredentialKey(id, platform, now.UnixNano(), r.nonce())

	encoded, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("encode platform credential: %w", err)
	}

	if err := r.store.Put(ctx, secretKey, string(encoded)); err != nil {
		return fmt.Errorf("store platform credential: %w", err)
	}

	conn := domain.PlatformConnection{
		SecretRef:   secretKey,
		Identifiers: copyIdentifiers(bundle.Identifiers, spec.Credentials),
		Expiry:      bundle.Expiry,
		ConnectedAt: now,
	}

	var previous domain.PlatformConnection
	_, err = r.repo.Update(ctx, id, func(account *domain.Account) error {
		previous = account.Connections.Get(platform)
		account.Connections.Connect(platform, conn)
		account.UpdatedAt = now
		return nil
	})
	if err != nil {
		if rollbackErr := r.store.Delete(ctx, secretKey); rollbackErr != nil {
			return fmt.Errorf("save platform connection and rollback stored credential: %w", errors.Join(err, rollbackErr))
		}

		return fmt.Errorf("save platform connection: %w", err)
	}

	if previous.SecretRef == "" || previous.SecretRef == secretKey {
		return nil
	}

	if err := r.store.Delete(ctx, previous.SecretRef); err != nil {
		var rollbackErr error
		if restoreErr := r.restore(ctx, id, platform, previous); restoreErr != nil {
			rollbackErr = errors.Join(rollbackErr, restoreErr)
		}
		if newSecretDeleteErr := r.store.Delete(ctx, secretKey); newSecretDeleteErr != nil {
			rollbackErr = errors.Join(rollbackErr, newSecretDeleteErr)
		}
		if rollbackErr != nil {
			return fmt.Errorf("delete previous platform credential and rollback connect: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("delete previous platform credential: %w", err)
	}

	return nil
}

// Disconnect clears the connection and deletes its credential. Disconnecting
// a platform that is not connected is a no-op.
func (r *ConnectionRegistry) Disconnect(ctx context.Context, id domain.AccountID, platform domain.Platform) error {
	if _, err := domain.SpecFor(platform); err != nil {
		return err
	}

	unlock := r.locks.Lock(lockKey(id, platform))
	defer unlock()

	now := r.clock.Now()

	var previous domain.PlatformConnection
	_, err := r.repo.Update(ctx, id, func(account *domain.Account) error {
		previous = account.Connections.Get(platform)
		if !previous.Connected && previous.SecretRef == "" {
			return errConnectionUnchanged
		}
		account.Connections.Disconnect(platform)
		account.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errConnectionUnchanged) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("save platform disconnect: %w", err)
	}

	if previous.SecretRef == "" {
		return nil
	}

	if err := r.store.Delete(ctx, previous.SecretRef); err != nil {
		if restoreErr := r.restore(ctx, id, platform, previous); restoreErr != nil {
			return fmt.Errorf("delete platform credential and restore connection: %w", errors.Join(err, restoreErr))
		}
		return fmt.Errorf("delete platform credential: %w", err)
	}

	return nil
}

// Credential returns the token bundle of a connected platform. The connected
// flag is read right before the secret is loaded.
func (r *ConnectionRegistry) Credential(ctx context.Context, id domain.AccountID, platform domain.Platform) (domain.CredentialBundle, error) {
	bundle, err := r.stored(ctx, id, platform)
	if err != nil {
		return domain.CredentialBundle{}, err
	}
	if bundle.Expired(r.clock.Now()) {
		return domain.CredentialBundle{}, fmt.Errorf("%s: %w", platform, domain.ErrCredentialExpired)
	}

	return bundle, nil
}

// RenewFunc exchanges a stored bundle for a fresh one.
type RenewFunc func(ctx context.Context, current domain.CredentialBundle) (domain.CredentialBundle, error)

// Refresh renews the stored credential of a connected platform, expired or
// not, and connects the result in its place.
func (r *ConnectionRegistry) Refresh(ctx context.Context, id domain.AccountID, platform domain.Platform, renew RenewFunc) error {
	current, err := r.stored(ctx, id, platform)
	if err != nil {
		return err
	}

	renewed, err := renew(ctx, current)
	if err != nil {
		return fmt.Errorf("renew %s credential: %w", platform, err)
	}

	return r.Connect(ctx, id, platform, renewed)
}

func (r *ConnectionRegistry) stored(ctx context.Context, id domain.AccountID, platform domain.Platform) (domain.CredentialBundle, error) {
	if _, err := domain.SpecFor(platform); err != nil {
		return domain.CredentialBundle{}, err
	}

	account, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("get account by id: %w", err)
	}

	conn := account.Connections.Get(platform)
	if !conn.Connected {
		return domain.CredentialBundle{}, fmt.Errorf("%s: %w", platform, domain.ErrPlatformNotConnected)
	}

	raw, err := r.store.Get(ctx, conn.SecretRef)
	if err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("load %s credential: %w", platform, err)
	}

	var bundle domain.CredentialBundle
	if err := json.Unmarshal([]byte(raw), &bundle); err != nil {
		return domain.CredentialBundle{}, fmt.Errorf("decode %s credential: %w", platform, err)
	}

	return bundle, nil
}

// Status lists every platform of an account in canonical order.
func (r *ConnectionRegistry) Status(ctx context.Context, id domain.AccountID) ([]ConnectionStatus, error) {
	account, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get account by id: %w", err)
	}

	statuses := make([]ConnectionStatus, 0, len(domain.Platforms()))
	for _, platform := range domain.Platforms() {
		conn := account.Connections.Get(platform)
		status := ConnectionStatus{
			Platform:    platform,
			Connected:   conn.Connected,
			Identifiers: conn.Identifiers,
			Expiry:      conn.Expiry,
		}
		if !conn.ConnectedAt.IsZero() {
			connectedAt := conn.ConnectedAt
			status.ConnectedAt = &connectedAt
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (r *ConnectionRegistry) restore(ctx context.Context, id domain.AccountID, platform domain.Platform, previous domain.PlatformConnection) error {
	_, err := r.repo.Update(ctx, id, func(account *domain.Account) error {
		if previous.Connected {
			account.Connections.Connect(platform, previous)
		} else {
			account.Connections.Disconnect(platform)
		}
		return nil
	})
	return err
}

func copyIdentifiers(identifiers map[string]string, schema domain.CredentialSchema) map[string]string {
	out := make(map[string]string, len(schema.Identifiers))
	for _, key := range schema.Identifiers {
		out[key] = identifiers[key]
	}
	return out
}
