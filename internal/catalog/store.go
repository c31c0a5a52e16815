package catalog

import "sync"

// Store holds the current catalog snapshot and swaps it atomically on reload.
// An in-flight request reads the snapshot once and keeps using it, so it sees
// either the old or the new catalogs in full, never a mix.
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func NewStore(snap *Snapshot) *Store {
	return &Store{snap: snap}
}

func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Swap installs a new snapshot. The caller is expected to have validated it.
func (s *Store) Swap(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// Reload loads both catalog files and swaps the snapshot in. On error the
// current snapshot stays installed.
func (s *Store) Reload(intentsPath, commandsPath string) error {
	snap, err := Load(intentsPath, commandsPath)
	if err != nil {
		return err
	}
	s.Swap(snap)
	return nil
}
