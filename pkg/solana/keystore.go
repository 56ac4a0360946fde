package solana

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/argon2"
)

const keystoreVersion = 2

var ErrWrongPassword = errors.New("wrong password or corrupted key")

// KeyStoreEntry represents a keystore entry with metadata
type KeyStoreEntry struct {
	Address      string `json:"address"`
	EncryptedKey string `json:"encrypted_key"`
	Salt         string `json:"salt"`
	Version      int    `json:"version"`
}

// Keystore keeps password-encrypted signer keys, one JSON file per address.
type Keystore struct {
	dir string
}

func NewKeystore(dir string) *Keystore {
	return &Keystore{dir: dir}
}

func (ks *Keystore) Dir() string {
	return ks.dir
}

// Generate creates a new key pair and stores it encrypted with password.
func (ks *Keystore) Generate(password string) (solana.PrivateKey, error) {
	account := types.NewAccount()
	key := solana.PrivateKey(account.PrivateKey)
	if err := ks.Save(key, password); err != nil {
		return nil, err
	}
	return key, nil
}

// Save encrypts key with password and writes it as <address>.json.
func (ks *Keystore) Save(key solana.PrivateKey, password string) error {
	if len(key) != 64 {
		return fmt.Errorf("invalid private key length %d", len(key))
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	encrypted, err := encryptPrivateKey(key, password, salt)
	if err != nil {
		return fmt.Errorf("failed to encrypt private key: %w", err)
	}

	address := key.PublicKey().String()
	entry := KeyStoreEntry{
		Address:      address,
		EncryptedKey: encrypted,
		Salt:         base64.StdEncoding.EncodeToString(salt),
		Version:      keystoreVersion,
	}
	jsonData, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keystore entry: %w", err)
	}

	if err := os.MkdirAll(ks.dir, 0700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	filename := filepath.Join(ks.dir, address+".json")
	if err := os.WriteFile(filename, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write keystore entry to file: %w", err)
	}
	return nil
}

// Load decrypts the key stored for address.
func (ks *Keystore) Load(address, password string) (solana.PrivateKey, error) {
	data, err := os.ReadFile(filepath.Join(ks.dir, address+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore entry: %w", err)
	}

	var entry KeyStoreEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal keystore entry: %w", err)
	}
	if entry.Address != address {
		return nil, fmt.Errorf("address mismatch: expected %s, got %s", address, entry.Address)
	}
	if entry.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version %d", entry.Version)
	}
	salt, err := base64.StdEncoding.DecodeString(entry.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}

	plain, err := decryptPrivateKey(entry.EncryptedKey, password, salt)
	if err != nil {
		return nil, err
	}
	account, err := types.AccountFromBytes(plain)
	if err != nil {
		return nil, fmt.Errorf("failed to create account from private key: %w", err)
	}
	if account.PublicKey.ToBase58() != address {
		return nil, fmt.Errorf("decrypted key belongs to %s, not %s", account.PublicKey.ToBase58(), address)
	}
	return solana.PrivateKey(account.PrivateKey), nil
}

// Addresses lists the stored addresses in lexical order.
func (ks *Keystore) Addresses() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(out)
	return out, nil
}

// LoadSigner resolves a signer reference: a solana-keygen JSON file path, or
// an address in the keystore unlocked with password.
func (ks *Keystore) LoadSigner(ref, password string) (solana.PrivateKey, error) {
	if _, err := os.Stat(ref); err == nil {
		key, err := solana.PrivateKeyFromSolanaKeygenFile(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to read keygen file %s: %w", ref, err)
		}
		return key, nil
	}
	if _, err := solana.PublicKeyFromBase58(ref); err != nil {
		return nil, fmt.Errorf("%q is neither a key file nor an address", ref)
	}
	return ks.Load(ref, password)
}

// deriveKey stretches a password into a 32-byte AES-256 key.
func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// encryptPrivateKey seals the key with AES-256-GCM; the nonce is prefixed.
func encryptPrivateKey(privateKey []byte, password string, salt []byte) (string, error) {
	gcm, err := newGCM(password, salt)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, privateKey, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func decryptPrivateKey(encryptedKey, password string, salt []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plaintext, nil
}
