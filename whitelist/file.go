package whitelist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/basemint/whitelist-backend/interfaces"
)

// document is the on-disk registry shape. Both indexes hold the full
// record; they must stay consistent with each other.
type document struct {
	ByIdentity map[interfaces.IdentityID]interfaces.LinkRecord  `json:"byIdentity"`
	ByWallet   map[interfaces.WalletAddress]interfaces.LinkRecord `json:"byWallet"`
}

func newDocument() document {
	return document{
		ByIdentity: make(map[interfaces.IdentityID]interfaces.LinkRecord),
		ByWallet:   make(map[interfaces.WalletAddress]interfaces.LinkRecord),
	}
}

// FileStore is a whole-file JSON link store. Every operation holds the
// mutex across its full load-mutate-save cycle, which makes the
// read-modify-write atomic with respect to every other operation.
type FileStore struct {
	path string
	log  *slog.Logger
	now  func() time.Time

	mu sync.Mutex
}

// NewFileStore creates a file-backed store persisting to the given path.
// The parent directory is created if needed.
func NewFileStore(path string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &FileStore{path: path, log: log, now: time.Now}, nil
}

// WithClock returns a copy of the store using the given time source.
func (s *FileStore) WithClock(now func() time.Time) *FileStore {
	return &FileStore{path: s.path, log: s.log, now: now}
}

func (s *FileStore) load() (document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return newDocument(), nil
	}
	if err != nil {
		return document{}, fmt.Errorf("failed to read registry file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("failed to parse registry file: %w", err)
	}
	if doc.ByIdentity == nil {
		doc.ByIdentity = make(map[interfaces.IdentityID]interfaces.LinkRecord)
	}
	if doc.ByWallet == nil {
		doc.ByWallet = make(map[interfaces.WalletAddress]interfaces.LinkRecord)
	}
	return doc, nil
}

// save writes the document to a temp file and renames it over the registry
// path, so readers never observe a partial write.
func (s *FileStore) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".whitelist-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}

// CreateLink creates the single link record for the pair, failing if either
// side is already linked.
func (s *FileStore) CreateLink(ctx context.Context, id interfaces.IdentityID, handle string, wallet interfaces.WalletAddress) (interfaces.LinkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return interfaces.LinkRecord{}, err
	}

	if existing, ok := doc.ByIdentity[id]; ok {
		return interfaces.LinkRecord{}, &interfaces.AlreadyLinkedIdentityError{IdentityID: id, Wallet: existing.Wallet}
	}
	if existing, ok := doc.ByWallet[wallet]; ok {
		return interfaces.LinkRecord{}, &interfaces.AlreadyLinkedWalletError{Wallet: wallet, Handle: existing.Handle}
	}

	record := interfaces.LinkRecord{
		IdentityID: id,
		Handle:     handle,
		Wallet:     wallet,
		LinkedAt:   s.now().UTC(),
	}

	doc.ByIdentity[id] = record
	doc.ByWallet[wallet] = record

	if err := s.save(doc); err != nil {
		return interfaces.LinkRecord{}, err
	}

	s.log.Info("Link created", "identity", id, "handle", handle, "wallet", wallet)
	return record, nil
}

func (s *FileStore) ByIdentity(ctx context.Context, id interfaces.IdentityID) (interfaces.LinkRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return interfaces.LinkRecord{}, false, err
	}
	record, ok := doc.ByIdentity[id]
	return record, ok, nil
}

func (s *FileStore) ByWallet(ctx context.Context, wallet interfaces.WalletAddress) (interfaces.LinkRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return interfaces.LinkRecord{}, false, err
	}
	record, ok := doc.ByWallet[wallet]
	return record, ok, nil
}

// ClaimMint checks and sets the mint flag in one critical section.
func (s *FileStore) ClaimMint(ctx context.Context, wallet interfaces.WalletAddress) (interfaces.LinkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return interfaces.LinkRecord{}, err
	}

	record, ok := doc.ByWallet[wallet]
	if !ok {
		return interfaces.LinkRecord{}, interfaces.ErrNotLinked
	}
	if record.MintClaimed {
		return interfaces.LinkRecord{}, &interfaces.AlreadyMintedError{Wallet: wallet, Handle: record.Handle}
	}

	claimedAt := s.now().UTC()
	record.MintClaimed = true
	record.MintClaimedAt = &claimedAt

	doc.ByIdentity[record.IdentityID] = record
	doc.ByWallet[wallet] = record

	if err := s.save(doc); err != nil {
		return interfaces.LinkRecord{}, err
	}

	s.log.Info("Mint claimed", "wallet", wallet, "handle", record.Handle)
	return record, nil
}

// MarkMintClaimed sets the mint flag without the already-claimed check.
func (s *FileStore) MarkMintClaimed(ctx context.Context, wallet interfaces.WalletAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	record, ok := doc.ByWallet[wallet]
	if !ok {
		return interfaces.ErrNotLinked
	}

	claimedAt := s.now().UTC()
	record.MintClaimed = true
	record.MintClaimedAt = &claimedAt

	doc.ByIdentity[record.IdentityID] = record
	doc.ByWallet[wallet] = record

	return s.save(doc)
}

func (s *FileStore) All(ctx context.Context) ([]interfaces.LinkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	records := make([]interfaces.LinkRecord, 0, len(doc.ByIdentity))
	for _, record := range doc.ByIdentity {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].LinkedAt.Before(records[j].LinkedAt)
	})
	return records, nil
}

func (s *FileStore) Remove(ctx context.Context, id interfaces.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	record, ok := doc.ByIdentity[id]
	if !ok {
		return nil
	}

	delete(doc.ByIdentity, id)
	delete(doc.ByWallet, record.Wallet)

	if err := s.save(doc); err != nil {
		return err
	}

	s.log.Info("Link removed", "identity", id, "wallet", record.Wallet)
	return nil
}

func (s *FileStore) Stats(ctx context.Context) (interfaces.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return interfaces.Stats{}, err
	}

	stats := interfaces.Stats{TotalLinked: len(doc.ByIdentity)}
	for _, record := range doc.ByIdentity {
		if record.MintClaimed {
			stats.TotalMinted++
		}
	}
	stats.Remaining = stats.TotalLinked - stats.TotalMinted
	return stats, nil
}
