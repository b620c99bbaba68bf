package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
	bolt "go.etcd.io/bbolt"
)

// AddRemote stores a new remote. Names are unique.
func (s *Store) AddRemote(name, url string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRemotes)
		if b.Get([]byte(name)) != nil {
			return fmt.Errorf("remote '%s' already exists", name)
		}
		return putRemote(b, &models.Remote{
			Name:      name,
			URL:       url,
			CreatedAt: time.Now().UTC(),
		})
	})
}

// GetRemote returns a remote by name, or (nil, nil) if there is none.
func (s *Store) GetRemote(name string) (*models.Remote, error) {
	var remote *models.Remote
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRemotes).Get([]byte(name))
		if data == nil {
			return nil
		}
		remote = &models.Remote{}
		if err := json.Unmarshal(data, remote); err != nil {
			return fmt.Errorf("unmarshal remote: %w", err)
		}
		return nil
	})
	return remote, err
}

// ListRemotes returns all remotes sorted by name.
func (s *Store) ListRemotes() ([]*models.Remote, error) {
	var remotes []*models.Remote
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRemotes).ForEach(func(_, v []byte) error {
			var r models.Remote
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal remote: %w", err)
			}
			remotes = append(remotes, &r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(remotes, func(i, j int) bool { return remotes[i].Name < remotes[j].Name })
	return remotes, nil
}

// RemoveRemote deletes a remote together with its token.
func (s *Store) RemoveRemote(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRemotes)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("remote '%s': %w", name, ErrNotFound)
		}
		if err := b.Delete([]byte(name)); err != nil {
			return fmt.Errorf("delete remote: %w", err)
		}
		return tx.Bucket(bucketRemoteTokens).Delete([]byte(name))
	})
}

// UpdateRemoteURL points an existing remote at a new URL. The stats of the
// old server no longer apply and are dropped.
func (s *Store) UpdateRemoteURL(name, url string) error {
	return s.updateRemote(name, func(r *models.Remote) {
		r.URL = url
		r.LastSeen = nil
	})
}

// RecordRemoteStats remembers the counts a remote last reported.
func (s *Store) RecordRemoteStats(name string, stats models.RemoteStats) error {
	if stats.CheckedAt.IsZero() {
		stats.CheckedAt = time.Now().UTC()
	}
	return s.updateRemote(name, func(r *models.Remote) {
		r.LastSeen = &stats
	})
}

func (s *Store) updateRemote(name string, mutate func(*models.Remote)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRemotes)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("remote '%s': %w", name, ErrNotFound)
		}
		var r models.Remote
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshal remote: %w", err)
		}
		mutate(&r)
		return putRemote(b, &r)
	})
}

func putRemote(b *bolt.Bucket, r *models.Remote) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal remote: %w", err)
	}
	return b.Put([]byte(r.Name), data)
}

// SetRemoteToken stores the bearer token used for a remote.
func (s *Store) SetRemoteToken(name, token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRemoteTokens).Put([]byte(name), []byte(token))
	})
}

// GetRemoteToken returns the stored token for a remote, or "" if none is set.
func (s *Store) GetRemoteToken(name string) (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketRemoteTokens).Get([]byte(name)); v != nil {
			token = string(v)
		}
		return nil
	})
	return token, err
}

// DeleteRemoteToken removes the stored token for a remote.
func (s *Store) DeleteRemoteToken(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRemoteTokens).Delete([]byte(name))
	})
}
