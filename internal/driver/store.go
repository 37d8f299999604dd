package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when storedBinding changes.
const bindingStoreSchema uint16 = 1

// ErrStaleEntry is returned for entries written by another store schema or
// whose bytes no longer match their digest.
var ErrStaleEntry = errors.New("stale binding store entry")

// BindingStore keeps the persisted implementation bindings of macro
// definitions between runs, keyed by the definition's full name.
// Thread-safe for concurrent access.
type BindingStore struct {
	mu  sync.RWMutex
	dir string
}

type storedBinding struct {
	Schema uint16   `msgpack:"schema"`
	Macro  string   `msgpack:"macro"`
	Digest [32]byte `msgpack:"digest"`
	Impl   []byte   `msgpack:"impl"`
}

// OpenBindingStore creates dir if needed and returns a store rooted there.
func OpenBindingStore(dir string) (*BindingStore, error) {
	if dir == "" {
		return nil, errors.New("binding store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &BindingStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *BindingStore) Dir() string { return s.dir }

func (s *BindingStore) pathFor(macro string) string {
	sum := sha256.Sum256([]byte(macro))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".mp")
}

// Put stores the binding bytes of macro, replacing any previous entry.
func (s *BindingStore) Put(macro string, impl []byte) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pathFor(macro)
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		// после успешного Rename временного файла уже нет
		_ = os.Remove(f.Name())
	}()

	entry := storedBinding{Schema: bindingStoreSchema, Macro: macro, Digest: sha256.Sum256(impl), Impl: impl}
	if err := msgpack.NewEncoder(f).Encode(&entry); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get returns the binding bytes of macro. A missing entry is not an error.
func (s *BindingStore) Get(macro string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, err := readEntry(s.pathFor(macro))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if entry.Macro != macro {
		return nil, false, fmt.Errorf("%w: entry for %q holds %q", ErrStaleEntry, macro, entry.Macro)
	}
	return entry.Impl, true, nil
}

func readEntry(path string) (*storedBinding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entry storedBinding
	if err := msgpack.NewDecoder(f).Decode(&entry); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if entry.Schema != bindingStoreSchema {
		return nil, fmt.Errorf("%w: %s has schema %d", ErrStaleEntry, path, entry.Schema)
	}
	if sha256.Sum256(entry.Impl) != entry.Digest {
		return nil, fmt.Errorf("%w: %s digest mismatch", ErrStaleEntry, path)
	}
	return &entry, nil
}

// Names lists the macros with an entry, sorted. Unreadable entries are
// reported through the returned error after the readable ones.
func (s *BindingStore) Names() ([]string, error) {
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.mp"))
	if err != nil {
		return nil, err
	}
	var (
		names []string
		errs  []error
	)
	for _, m := range matches {
		entry, err := readEntry(m)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		names = append(names, entry.Macro)
	}
	slices.Sort(names)
	return names, errors.Join(errs...)
}

// DropAll removes every entry.
func (s *BindingStore) DropAll() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return err
	}
	return os.MkdirAll(s.dir, 0o755)
}
