package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
	bolt "go.etcd.io/bbolt"
)

// SaveResult caches the latest result snapshot of a query.
func (s *Store) SaveResult(queryID int64, data *models.QueryResultData) error {
	if data == nil {
		return fmt.Errorf("result is nil")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if !queryExists(tx, queryID) {
			return fmt.Errorf("query %d: %w", queryID, ErrNotFound)
		}

		c := *data
		if c.RetrievedAt.IsZero() {
			c.RetrievedAt = time.Now().UTC()
		}
		payload, err := json.Marshal(&c)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		return tx.Bucket(bucketResults).Put(idKey(queryID), payload)
	})
}

// GetResult returns the cached result of a query. Returns (nil, nil) if the
// query has never been run.
func (s *Store) GetResult(queryID int64) (*models.QueryResultData, error) {
	var data *models.QueryResultData

	err := s.db.View(func(tx *bolt.Tx) error {
		payload := tx.Bucket(bucketResults).Get(idKey(queryID))
		if payload == nil {
			return nil
		}
		data = &models.QueryResultData{}
		if err := json.Unmarshal(payload, data); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
		return nil
	})

	return data, err
}
