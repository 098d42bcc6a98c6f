package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
	"github.com/gofrs/flock"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	AccountsPathKey    = "accounts.path"
	accountsFileMode   = 0o600
	accountsDirMode    = 0o700
	accountsConfigDir  = ".marketwin"
	accountsConfigFile = "accounts.toml"
	tempFilePattern    = ".accounts-*.toml.tmp"
	lockFileSuffix     = ".lock"
)

// Repository stores every account in one TOML document. Writers hold the
// per-path mutex and an exclusive flock on the sidecar lock file for the whole
// read-modify-write cycle, so separate mw processes serialize too.
type Repository struct {
	accountsPath string
	mu           *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.AccountRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(AccountsPathKey, filepath.Join(homeDir, accountsConfigDir, accountsConfigFile))

	accountsPath := cfg.GetString(AccountsPathKey)
	if accountsPath == "" {
		return nil, errors.New("accounts path is empty")
	}
	accountsPath, err = normalizeAccountsPath(accountsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{accountsPath: accountsPath, mu: lockForPath(accountsPath)}, nil
}

func (r *Repository) Path() string { return r.accountsPath }

func (r *Repository) Create(ctx context.Context, account domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lockFile(true)
	if err != nil {
		return err
	}
	defer unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	for _, entry := range file.Accounts {
		if entry.ID == string(account.ID) {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.ID)
		}
	}
	file.Accounts = append(file.Accounts, toSchema(account))

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) Update(ctx context.Context, id domain.AccountID, fn ports.UpdateFunc) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lockFile(true)
	if err != nil {
		return domain.Account{}, err
	}
	defer unlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Account{}, err
	}

	index := -1
	for i := range file.Accounts {
		if file.Accounts[i].ID == string(id) {
			index = i
			break
		}
	}
	if index < 0 {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	account := fromSchema(file.Accounts[index])
	if err := fn(&account); err != nil {
		return domain.Account{}, err
	}
	account.ID = id
	file.Accounts[index] = toSchema(account)

	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	if err := r.writeSchema(file); err != nil {
		return domain.Account{}, err
	}

	return account, nil
}

func (r *Repository) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	unlock, err := r.lockFile(false)
	if err != nil {
		return domain.Account{}, err
	}
	defer unlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Account{}, err
	}

	for _, entry := range file.Accounts {
		if entry.ID == string(id) {
			return fromSchema(entry), nil
		}
	}

	return domain.Account{}, domain.ErrAccountNotFound
}

func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	unlock, err := r.lockFile(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	accounts := make([]domain.Account, 0, len(file.Accounts))
	for _, entry := range file.Accounts {
		accounts = append(accounts, fromSchema(entry))
	}

	return accounts, nil
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.accountsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read accounts file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode accounts file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeAccountsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve accounts path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

// LockPath is the sidecar file flocked around every access to the accounts file.
func (r *Repository) LockPath() string { return r.accountsPath + lockFileSuffix }

// lockFile takes the cross-process lock. Readers skip it while the accounts
// directory does not exist yet, since there is nothing to read.
func (r *Repository) lockFile(exclusive bool) (func(), error) {
	dir := filepath.Dir(r.accountsPath)
	if exclusive {
		if err := os.MkdirAll(dir, accountsDirMode); err != nil {
			return nil, fmt.Errorf("create accounts directory: %w", err)
		}
	} else if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return func() {}, nil
	}

	lock := flock.New(r.LockPath())
	var err error
	if exclusive {
		err = lock.Lock()
	} else {
		err = lock.RLock()
	}
	if err != nil {
		return nil, fmt.Errorf("lock accounts file: %w", err)
	}

	return func() { _ = lock.Unlock() }, nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.accountsPath), accountsDirMode); err != nil {
		return fmt.Errorf("create accounts directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode accounts file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.accountsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp accounts file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp accounts file: %w", err)
	}

	if err := tempFile.Chmod(accountsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp accounts file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp accounts file: %w", err)
	}

	if err := os.Rename(tempName, r.accountsPath); err != nil {
		return fmt.Errorf("replace accounts file: %w", err)
	}

	cleanup = false

	return nil
}

func toSchema(account domain.Account) accountSchema {
	encoded := accountSchema{
		ID:    string(account.ID),
		Name:  account.Name,
		Email: account.Email,
		Business: businessSchema{
			Name: account.Business.Name,
			Type: account.Business.Type,
		},
		Usage: usageSchema{
			Counts:         make(map[string]int64, len(account.Usage.Counts)),
			LastUpdated:    formatTime(account.Usage.LastUpdated),
			ResetWatermark: formatTime(account.Usage.ResetWatermark),
		},
		ConnectedPlatforms: make([]string, 0, len(account.Connections.Platforms)),
		CreatedAt:          formatTime(account.CreatedAt),
		UpdatedAt:          formatTime(account.UpdatedAt),
	}

	if account.Subscription != nil {
		encoded.Subscription = &subscriptionSchema{
			Plan:      string(account.Subscription.Plan),
			Status:    string(account.Subscription.Status),
			StartedAt: formatTime(account.Subscription.StartedAt),
		}
	}

	for feature, count := range account.Usage.Counts {
		encoded.Usage.Counts[string(feature)] = count
	}

	for _, platform := range account.Connections.Platforms {
		encoded.ConnectedPlatforms = append(encoded.ConnectedPlatforms, string(platform))
	}

	for _, platform := range domain.Platforms() {
		conn, ok := account.Connections.ByPlatform[platform]
		if !ok {
			continue
		}
		entry := connectionSchema{
			Platform:    string(platform),
			Connected:   conn.Connected,
			SecretRef:   conn.SecretRef,
			Identifiers: conn.Identifiers,
			ConnectedAt: formatTime(conn.ConnectedAt),
		}
		if conn.Expiry != nil {
			entry.Expiry = formatTime(*conn.Expiry)
		}
		encoded.Connections = append(encoded.Connections, entry)
	}

	return encoded
}

func fromSchema(entry accountSchema) domain.Account {
	account := domain.Account{
		ID:    domain.AccountID(entry.ID),
		Name:  entry.Name,
		Email: entry.Email,
		Business: domain.Business{
			Name: entry.Business.Name,
			Type: entry.Business.Type,
		},
		Usage: domain.UsageRecord{
			Counts:         make(map[domain.Feature]int64, len(entry.Usage.Counts)),
			LastUpdated:    parseTime(entry.Usage.LastUpdated),
			ResetWatermark: parseTime(entry.Usage.ResetWatermark),
		},
		Connections: domain.NewConnections(),
		CreatedAt:   parseTime(entry.CreatedAt),
		UpdatedAt:   parseTime(entry.UpdatedAt),
	}

	if entry.Subscription != nil {
		account.Subscription = &domain.Subscription{
			Plan:      domain.PlanID(entry.Subscription.Plan),
			Status:    domain.SubscriptionStatus(entry.Subscription.Status),
			StartedAt: parseTime(entry.Subscription.StartedAt),
		}
	}

	for _, feature := range domain.Features() {
		account.Usage.Counts[feature] = entry.Usage.Counts[string(feature)]
	}

	for _, stored := range entry.Connections {
		conn := domain.PlatformConnection{
			Connected:   stored.Connected,
			SecretRef:   stored.SecretRef,
			Identifiers: stored.Identifiers,
			ConnectedAt: parseTime(stored.ConnectedAt),
		}
		if expiry := parseTime(stored.Expiry); !expiry.IsZero() {
			conn.Expiry = &expiry
		}
		account.Connections.ByPlatform[domain.Platform(stored.Platform)] = conn
	}
	// The stored set is informational; the flags are authoritative.
	account.Connections.Sync()

	return account
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
