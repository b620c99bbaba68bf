package server

import (
	"cmp"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TokenInfo is a stored token. Only the SHA-256 of the raw token is kept.
type TokenInfo struct {
	ID         string    `json:"id"`
	TokenHash  string    `json:"token_hash"`
	Desc       string    `json:"description"`
	Permission string    `json:"permission"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// TokenStore keeps the tokens the server accepts.
type TokenStore interface {
	GetByHash(hash string) (*TokenInfo, error)
	UpdateLastUsed(id string) error
	ListTokens() ([]*TokenInfo, error)
	DeleteToken(id string) error
	CreateToken(desc, permission string) (rawToken string, info *TokenInfo, err error)
}

// TokenPrefix marks raw bearer tokens issued by the server.
const TokenPrefix = "vzt_"

// FileTokenStore keeps tokens in a JSON file. Only token hashes are written;
// the raw token is returned once, on creation. Last-use stamps are held in
// memory until the next write.
type FileTokenStore struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	byID   map[string]*TokenInfo
	byHash map[string]string
}

// NewFileTokenStore returns an empty store persisting to path.
func NewFileTokenStore(path string, logger *slog.Logger) *FileTokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileTokenStore{
		path:   path,
		logger: logger,
		byID:   make(map[string]*TokenInfo),
		byHash: make(map[string]string),
	}
}

// Load replaces the in-memory tokens with the file's. A missing file leaves
// the store empty.
func (s *FileTokenStore) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token store: %w", err)
	}

	var tokens []*TokenInfo
	if err := json.Unmarshal(data, &tokens); err != nil {
		return fmt.Errorf("parse token store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.byID)
	clear(s.byHash)
	for _, t := range tokens {
		s.byID[t.ID] = t
		s.byHash[t.TokenHash] = t.ID
	}
	s.logger.Info("loaded tokens", "count", len(tokens), "path", s.path)
	return nil
}

// GetByHash returns a copy of the token with the given hash, or nil.
func (s *FileTokenStore) GetByHash(hash string) (*TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byHash[hash]
	if !ok {
		return nil, nil
	}
	c := *s.byID[id]
	return &c, nil
}

func (s *FileTokenStore) UpdateLastUsed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("token '%s' not found", id)
	}
	t.LastUsedAt = time.Now().UTC()
	return nil
}

// Save writes every token, including pending last-use stamps.
func (s *FileTokenStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeLocked()
}

// CreateToken issues a new bearer token and persists its hash.
func (s *FileTokenStore) CreateToken(desc, permission string) (string, *TokenInfo, error) {
	raw := TokenPrefix + rand.Text()
	info := &TokenInfo{
		ID:         uuid.NewString(),
		TokenHash:  HashToken(raw),
		Desc:       desc,
		Permission: permission,
		CreatedAt:  time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[info.ID] = info
	s.byHash[info.TokenHash] = info.ID
	if err := s.writeLocked(); err != nil {
		delete(s.byID, info.ID)
		delete(s.byHash, info.TokenHash)
		return "", nil, fmt.Errorf("persist token: %w", err)
	}
	c := *info
	return raw, &c, nil
}

// ListTokens returns copies of all tokens, oldest first.
func (s *FileTokenStore) ListTokens() ([]*TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(), nil
}

func (s *FileTokenStore) DeleteToken(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("token '%s' not found", id)
	}
	delete(s.byID, id)
	delete(s.byHash, t.TokenHash)
	if err := s.writeLocked(); err != nil {
		s.byID[id] = t
		s.byHash[t.TokenHash] = id
		return fmt.Errorf("persist token removal: %w", err)
	}
	return nil
}

func (s *FileTokenStore) sortedLocked() []*TokenInfo {
	tokens := make([]*TokenInfo, 0, len(s.byID))
	for _, t := range s.byID {
		c := *t
		tokens = append(tokens, &c)
	}
	slices.SortFunc(tokens, func(a, b *TokenInfo) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return tokens
}

// writeLocked replaces the token file through a temp file in the same
// directory. The caller holds s.mu.
func (s *FileTokenStore) writeLocked() error {
	data, err := json.MarshalIndent(s.sortedLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("write token store: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write token store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write token store: %w", err)
	}
	return nil
}

var _ TokenStore = (*FileTokenStore)(nil)
