package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
	"wbscraper/pkg/storage"
)

// EnvPassphrase overrides the generated passphrase of the encrypted store
const EnvPassphrase = "WBSCRAPER_PASSPHRASE"

const (
	vaultVersion   = 2
	saltSize       = 32
	keySize        = 32
	pbkdf2Rounds   = 100000
	passphraseFile = ".passphrase"
)

// ErrVaultLocked is returned when a stored session cannot be opened with the
// current passphrase
var ErrVaultLocked = errors.New("stored session cannot be decrypted with this passphrase")

// cookieVault is the file layout. Account names and save times stay in the
// clear so accounts can be listed; each session is sealed on its own with
// the account name as additional data, so an entry cannot be moved to
// another name.
type cookieVault struct {
	Version int                   `json:"version"`
	Salt    []byte                `json:"salt"`
	Entries map[string]vaultEntry `json:"entries"`
}

type vaultEntry struct {
	Sealed  []byte    `json:"sealed"`
	SavedAt time.Time `json:"saved_at"`
}

// session is the secret part of an Account
type session struct {
	Cookie    string `json:"cookie"`
	UserAgent string `json:"user_agent,omitempty"`
}

// EncryptedFileStore keeps session cookies in one file, sealed with AES-GCM
// under a PBKDF2 key. The passphrase comes from WBSCRAPER_PASSPHRASE or a
// generated file next to the store.
type EncryptedFileStore struct {
	path       string
	passphrase []byte

	mu      sync.RWMutex
	key     []byte
	keySalt []byte
}

// NewEncryptedFileStore opens (or prepares) the store at path
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	pass, err := loadPassphrase(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: pass}, nil
}

// Store seals the account's cookie and user agent under its name
func (e *EncryptedFileStore) Store(account *Account) error {
	if err := Validate(account); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if errors.Is(err, os.ErrNotExist) {
		v, err = newVault()
	}
	if err != nil {
		return err
	}

	plain, err := json.Marshal(session{Cookie: account.Cookie, UserAgent: account.UserAgent})
	if err != nil {
		return err
	}
	sealed, err := seal(e.keyFor(v.Salt), []byte(account.Name), plain)
	if err != nil {
		return fmt.Errorf("failed to seal session: %w", err)
	}

	saved := account.LastModified
	if saved.IsZero() {
		saved = time.Now()
	}
	v.Entries[account.Name] = vaultEntry{Sealed: sealed, SavedAt: saved}
	return e.write(v)
}

// Retrieve opens the session stored under name
func (e *EncryptedFileStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, err
	}
	entry, ok := v.Entries[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return e.open(v.Salt, name, entry)
}

// List opens every stored session, ordered by name
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if errors.Is(err, os.ErrNotExist) {
		return []*Account{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(v.Entries))
	for name := range v.Entries {
		names = append(names, name)
	}
	sort.Strings(names)

	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		account, err := e.open(v.Salt, name, v.Entries[name])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete drops name; the file goes away with its last entry
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.read()
	if errors.Is(err, os.ErrNotExist) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return err
	}
	if _, ok := v.Entries[name]; !ok {
		return ErrCredentialsNotFound
	}

	delete(v.Entries, name)
	if len(v.Entries) == 0 {
		return os.Remove(e.path)
	}
	return e.write(v)
}

// Exists reports whether name is stored. The session is not opened.
func (e *EncryptedFileStore) Exists(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.read()
	if err != nil {
		return false
	}
	_, ok := v.Entries[name]
	return ok
}

func (e *EncryptedFileStore) open(salt []byte, name string, entry vaultEntry) (*Account, error) {
	plain, err := unseal(e.keyFor(salt), []byte(name), entry.Sealed)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", name, ErrVaultLocked)
	}
	var s session
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, fmt.Errorf("account %s: corrupt session: %w", name, err)
	}
	return &Account{
		Name:         name,
		Cookie:       s.Cookie,
		UserAgent:    s.UserAgent,
		LastModified: entry.SavedAt,
	}, nil
}

// keyFor derives the key for salt, reusing the last derivation; callers
// hold e.mu
func (e *EncryptedFileStore) keyFor(salt []byte) []byte {
	if e.key == nil || string(e.keySalt) != string(salt) {
		e.key = pbkdf2.Key(e.passphrase, salt, pbkdf2Rounds, keySize, sha256.New)
		e.keySalt = append([]byte(nil), salt...)
	}
	return e.key
}

func (e *EncryptedFileStore) read() (*cookieVault, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, err
	}
	var v cookieVault
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if v.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported credential file version %d", v.Version)
	}
	if len(v.Salt) != saltSize {
		return nil, errors.New("credential file has no valid salt")
	}
	if v.Entries == nil {
		v.Entries = make(map[string]vaultEntry)
	}
	return &v, nil
}

func (e *EncryptedFileStore) write(v *cookieVault) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(e.path, content, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

func newVault() (*cookieVault, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return &cookieVault{Version: vaultVersion, Salt: salt, Entries: make(map[string]vaultEntry)}, nil
}

// loadPassphrase prefers the environment, then dir/.passphrase, creating
// that file with a random value on first use
func loadPassphrase(dir string) ([]byte, error) {
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		return []byte(pass), nil
	}

	path := filepath.Join(dir, passphraseFile)
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return content, nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	pass := []byte(base64.RawURLEncoding.EncodeToString(b))
	if err := storage.WriteFileAtomic(path, pass, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

// seal encrypts plain with AES-GCM, binding aad; the nonce is prepended
func seal(key, aad, plain []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, aad), nil
}

func unseal(key, aad, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed data too short")
	}
	nonce, body := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
