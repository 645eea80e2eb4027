package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/beaconbridge/beacon/internal/crypto"
)

const (
	vaultBlobName   = ".secrets.json"
	sentinelID      = "test"
	sentinelValue   = "beacon-secrets-sentinel"
	secureFileDir   = "data"
)

// Sentinel errors for the secrets package, mirroring the CryptoError{BadPassword|CorruptRecord|UnsupportedAlgorithm}
// taxonomy (§7) plus the store-mode errors the supplemented one-time/read-write behavior needs (§9).
var (
	ErrBadPassword         = crypto.ErrBadPassword
	ErrCorruptRecord       = crypto.ErrCorruptRecord
	ErrUnsupportedAlgorithm = crypto.ErrUnsupportedAlgorithm

	// ErrNotInitialized is returned opening a read-only store whose vault has never had a sentinel record written.
	ErrNotInitialized = errors.New("secrets: store has not been initialized")
	// ErrInvalidMode is returned constructing a store as both read-only and write-only.
	ErrInvalidMode = errors.New("secrets: store cannot be both read-only and write-only")
	// ErrReadOnly is returned on a mutating call against a read-only store.
	ErrReadOnly = errors.New("secrets: store is read-only")
	// ErrWriteOnly is returned on a reading call against a write-only store.
	ErrWriteOnly = errors.New("secrets: store is write-only")
	// ErrOneTimeExhausted is returned retrieving a one-time secret id a second time.
	ErrOneTimeExhausted = errors.New("secrets: one-time secret already retrieved")
	// ErrSecretNotFound is returned retrieving an id absent from the vault.
	ErrSecretNotFound = errors.New("secrets: secret not found")
)

// Options configures Open.
type Options struct {
	// ReadOnly opens the store for Retrieve/Read/ReadJSON only. Not how the Core opens its store: the Core persists
	// its Space/cache documents via SaveJSON, so it needs a read-write Store. The "Core never mutates vault secrets"
	// invariant (§4.7) is enforced by the Handle it actually holds, which has no StoreSecret method at all, not by
	// this flag. ReadOnly exists for callers that genuinely want an unlock-and-inspect Store.
	ReadOnly bool
	// WriteOnly opens the store for Save/SaveJSON only, for the out-of-scope CLI collaborator. Mutually exclusive
	// with ReadOnly.
	WriteOnly bool
	// OneTimeIDs marks vault secret ids that may be retrieved at most once per store instance.
	OneTimeIDs []string
	// Algorithm and Profile select the cipher/KDF used for records this store instance creates. Existing records are
	// always decrypted using the algorithm/profile recorded on the record itself.
	Algorithm crypto.Algorithm
	Profile   crypto.Profile
}

// Store is the Encrypted Store (component A): a password-unlocked vault of named secrets plus a set of named secure
// JSON files, both backed by a BlobStore.
type Store struct {
	blobs     BlobStore
	password  string
	readOnly  bool
	writeOnly bool
	algorithm crypto.Algorithm
	profile   crypto.Profile

	mu        sync.Mutex
	oneTime   map[string]bool
	retrieved map[string]bool
}

// Open loads (or initializes) the vault document, validating password against the sentinel record.
func Open(ctx context.Context, blobs BlobStore, password string, opts Options) (*Store, error) {
	if opts.ReadOnly && opts.WriteOnly {
		return nil, ErrInvalidMode
	}

	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = crypto.AlgorithmXChaCha20Poly1305
	}
	profile := opts.Profile
	if profile == "" {
		profile = crypto.ProfileArgon2Low
	}

	oneTime := make(map[string]bool, len(opts.OneTimeIDs))
	for _, id := range opts.OneTimeIDs {
		oneTime[id] = true
	}

	s := &Store{
		blobs:     blobs,
		password:  password,
		readOnly:  opts.ReadOnly,
		writeOnly: opts.WriteOnly,
		algorithm: algorithm,
		profile:   profile,
		oneTime:   oneTime,
		retrieved: make(map[string]bool),
	}

	if err := s.ensureSentinel(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) ensureSentinel(ctx context.Context) error {
	doc, err := s.loadVault(ctx)
	if err != nil {
		return err
	}

	rec, ok := doc[sentinelID]
	if !ok {
		if s.readOnly {
			return ErrNotInitialized
		}
		sealed, err := crypto.Encrypt(s.password, []byte(sentinelValue), s.algorithm, s.profile)
		if err != nil {
			return err
		}
		doc[sentinelID] = fromRecord(sealed)
		return s.saveVault(ctx, doc)
	}

	plain, _, err := s.decryptWire(rec)
	if err != nil {
		return err
	}
	if string(plain) != sentinelValue {
		return ErrBadPassword
	}
	return nil
}

func (s *Store) decryptWire(w wireRecord) ([]byte, bool, error) {
	rec, err := w.toRecord()
	if err != nil {
		return nil, false, err
	}
	return crypto.Decrypt(s.password, rec)
}

func (s *Store) loadVault(ctx context.Context) (document, error) {
	data, err := s.blobs.Read(ctx, vaultBlobName)
	if errors.Is(err, ErrBlobNotFound) {
		return document{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument(data)
}

func (s *Store) saveVault(ctx context.Context, doc document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	return s.blobs.Write(ctx, vaultBlobName, data)
}

// Retrieve returns the plaintext of a vault secret. One-time ids fail on their second call.
func (s *Store) Retrieve(ctx context.Context, secretID string) (string, error) {
	if s.writeOnly {
		return "", ErrWriteOnly
	}

	s.mu.Lock()
	if s.oneTime[secretID] && s.retrieved[secretID] {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrOneTimeExhausted, secretID)
	}
	s.mu.Unlock()

	doc, err := s.loadVault(ctx)
	if err != nil {
		return "", err
	}
	rec, ok := doc[secretID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, secretID)
	}

	plain, _, err := s.decryptWire(rec)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.retrieved[secretID] = true
	s.mu.Unlock()

	return string(plain), nil
}

// StoreSecret writes a vault secret under secretID, sealing it with the store's configured algorithm and profile.
// This is a mutating operation; the Core never calls it (§9), only the CLI collaborator's write-only handles do.
func (s *Store) StoreSecret(ctx context.Context, secretID, value string) error {
	if s.readOnly {
		return ErrReadOnly
	}

	doc, err := s.loadVault(ctx)
	if err != nil {
		return err
	}
	sealed, err := crypto.Encrypt(s.password, []byte(value), s.algorithm, s.profile)
	if err != nil {
		return err
	}
	doc[secretID] = fromRecord(sealed)
	return s.saveVault(ctx, doc)
}

func secureFileBlobName(name string) string {
	return secureFileDir + "/" + name + ".json"
}

// Read returns the plaintext content of secure file name, or "" if it does not exist.
func (s *Store) Read(ctx context.Context, name string) (string, error) {
	if s.writeOnly {
		return "", ErrWriteOnly
	}

	data, err := s.blobs.Read(ctx, secureFileBlobName(name))
	if errors.Is(err, ErrBlobNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return "", fmt.Errorf("decode secure file %s: %w", name, err)
	}

	plain, _, err := s.decryptWire(w)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Save writes the plaintext content of secure file name.
func (s *Store) Save(ctx context.Context, name, content string) error {
	if s.readOnly {
		return ErrReadOnly
	}

	sealed, err := crypto.Encrypt(s.password, []byte(content), s.algorithm, s.profile)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(fromRecord(sealed), "", "  ")
	if err != nil {
		return fmt.Errorf("encode secure file %s: %w", name, err)
	}
	return s.blobs.Write(ctx, secureFileBlobName(name), data)
}

// ReadJSON decodes secure file name's content as JSON into a map. Returns an empty map if the file does not exist.
func (s *Store) ReadJSON(ctx context.Context, name string) (map[string]any, error) {
	content, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	if content == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("decode json secure file %s: %w", name, err)
	}
	return out, nil
}

// SaveJSON encodes value as JSON and writes it to secure file name.
func (s *Store) SaveJSON(ctx context.Context, name string, value map[string]any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode json secure file %s: %w", name, err)
	}
	return s.Save(ctx, name, string(data))
}
