package wallet

import (
	"bufio"
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySource yields the private keys of the wallets to process, in order.
// Each call to Key returns a fresh key the caller owns and must zero.
type KeySource interface {
	Len() int
	Key(i int) (*ecdsa.PrivateKey, error)
}

// HexKeys holds hex-encoded private keys, decoded on demand.
type HexKeys []string

// LoadHexKeys reads one hex key per line, ignoring blank lines.
func LoadHexKeys(path string) (HexKeys, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open private keys: %w", err)
	}
	defer f.Close()

	var keys HexKeys
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read private keys: %w", err)
	}
	return keys, nil
}

func (h HexKeys) Len() int { return len(h) }

func (h HexKeys) Key(i int) (*ecdsa.PrivateKey, error) {
	if i < 0 || i >= len(h) {
		return nil, fmt.Errorf("key index %d out of range", i)
	}
	return ParseHexKey(h[i])
}

// ParseHexKey decodes a hex private key with or without 0x prefix.
// The error never echoes the key material.
func ParseHexKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// KeystoreKeys are encrypted go-ethereum keystore files sharing a password.
// Files are decrypted one at a time when requested.
type KeystoreKeys struct {
	files    []string
	password string
}

// OpenKeystoreDir lists the keystore files in dir in lexical order.
func OpenKeystoreDir(dir, password string) (*KeystoreKeys, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	return &KeystoreKeys{files: files, password: password}, nil
}

func (k *KeystoreKeys) Len() int { return len(k.files) }

func (k *KeystoreKeys) Key(i int) (*ecdsa.PrivateKey, error) {
	if i < 0 || i >= len(k.files) {
		return nil, fmt.Errorf("key index %d out of range", i)
	}

	keyJSON, err := os.ReadFile(k.files[i])
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, k.password)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", filepath.Base(k.files[i]), err)
	}
	return key.PrivateKey, nil
}
