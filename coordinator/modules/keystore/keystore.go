package keystore

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

const serviceKeysKey = "service_keys"

// KeyStore keeps the daemon's service key pair. The service key identifies
// the coordinator itself (e.g. when stamping receipts), not a validator.
type KeyStore interface {
	PutKeys(name string, keyPair *KeyPair) error
	LoadKeys(name string) (*KeyPair, error)
}

type LevelDBKeyStore struct {
	keystoreDb *leveldb.DB
}

func NewLevelDBKeyStore(keystorePath string) (KeyStore, error) {
	db, err := leveldb.OpenFile(keystorePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}

	keystore := &LevelDBKeyStore{keystoreDb: db}

	if _, err := keystore.keystoreDb.Get([]byte(serviceKeysKey), nil); err != nil {
		if err := keystore.initJsonKey(serviceKeysKey, map[string]*KeyPair{}); err != nil {
			return nil, fmt.Errorf("failed to init %s storage: %w", serviceKeysKey, err)
		}
	}

	return keystore, nil
}

func (s *LevelDBKeyStore) PutKeys(name string, keyPair *KeyPair) error {
	bz, err := s.keystoreDb.Get([]byte(serviceKeysKey), nil)
	if err != nil {
		return fmt.Errorf("failed to read keystore: %w", err)
	}

	var keyPairs = map[string]*KeyPair{}
	if err := json.Unmarshal(bz, &keyPairs); err != nil {
		return fmt.Errorf("failed to unmarshal key pairs: %w", err)
	}

	keyPairs[name] = keyPair

	keyPairsBz, err := json.Marshal(keyPairs)
	if err != nil {
		return fmt.Errorf("failed to marshal key pairs: %w", err)
	}

	if err := s.keystoreDb.Put([]byte(serviceKeysKey), keyPairsBz, nil); err != nil {
		return fmt.Errorf("failed to put key pairs: %w", err)
	}

	return nil
}

func (s *LevelDBKeyStore) LoadKeys(name string) (*KeyPair, error) {
	bz, err := s.keystoreDb.Get([]byte(serviceKeysKey), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	var keyPairs = map[string]*KeyPair{}
	if err := json.Unmarshal(bz, &keyPairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key pairs: %w", err)
	}

	keyPair, ok := keyPairs[name]
	if !ok {
		return nil, fmt.Errorf("no key pair found for %s", name)
	}

	return keyPair, nil
}

func (s *LevelDBKeyStore) initJsonKey(key string, data interface{}) error {
	dataBz, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal storage structure: %w", err)
	}
	if err := s.keystoreDb.Put([]byte(key), dataBz, nil); err != nil {
		return fmt.Errorf("failed to init state: %w", err)
	}
	return nil
}

type KeyPair struct {
	Pub  ed25519.PublicKey
	Priv ed25519.PrivateKey
}

func NewKeyPair() *KeyPair {
	pub, priv, _ := ed25519.GenerateKey(nil)
	return &KeyPair{Pub: pub, Priv: priv}
}

func (p *KeyPair) GetAddr() string {
	return hex.EncodeToString(p.Pub)
}
