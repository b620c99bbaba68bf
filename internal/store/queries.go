package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kilupskalvis/vizedit/internal/models"
	bolt "go.etcd.io/bbolt"
)

// CreateQuery stores a new query and returns it with its assigned ID.
// Visualizations on q are ignored; they are saved separately.
func (s *Store) CreateQuery(q *models.Query) (*models.Query, error) {
	if q.Name == "" {
		return nil, fmt.Errorf("query name cannot be empty")
	}

	var created *models.Query
	err := s.db.Update(func(tx *bolt.Tx) error {
		id, err := nextID(tx, counterQueryID)
		if err != nil {
			return err
		}

		c := *q
		c.ID = id
		c.Visualizations = nil
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}

		data, err := json.Marshal(&c)
		if err != nil {
			return fmt.Errorf("marshal query: %w", err)
		}
		if err := tx.Bucket(bucketQueries).Put(idKey(id), data); err != nil {
			return fmt.Errorf("store query: %w", err)
		}
		created = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetQuery retrieves a query with its visualizations in creation order.
// Returns (nil, nil) if not found.
func (s *Store) GetQuery(id int64) (*models.Query, error) {
	var q *models.Query

	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketQueries).Get(idKey(id))
		if data == nil {
			return nil
		}

		q = &models.Query{}
		if err := json.Unmarshal(data, q); err != nil {
			return fmt.Errorf("unmarshal query: %w", err)
		}

		vizs, err := visualizationsForQuery(tx, id)
		if err != nil {
			return err
		}
		q.Visualizations = vizs
		return nil
	})

	return q, err
}

// ListQueries returns all queries sorted by ID.
func (s *Store) ListQueries() ([]*models.Query, error) {
	var queries []*models.Query

	err := s.db.View(func(tx *bolt.Tx) error {
		byQuery := make(map[int64][]*models.Visualization)
		err := tx.Bucket(bucketVisualizations).ForEach(func(_, v []byte) error {
			var viz models.Visualization
			if err := json.Unmarshal(v, &viz); err != nil {
				return fmt.Errorf("unmarshal visualization: %w", err)
			}
			byQuery[viz.QueryID] = append(byQuery[viz.QueryID], &viz)
			return nil
		})
		if err != nil {
			return err
		}

		return tx.Bucket(bucketQueries).ForEach(func(_, v []byte) error {
			var q models.Query
			if err := json.Unmarshal(v, &q); err != nil {
				return fmt.Errorf("unmarshal query: %w", err)
			}
			q.Visualizations = byQuery[q.ID]
			queries = append(queries, &q)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(queries, func(i, j int) bool {
		return queries[i].ID < queries[j].ID
	})
	return queries, nil
}

// DeleteQuery removes a query together with its visualizations and cached result.
func (s *Store) DeleteQuery(id int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		queries := tx.Bucket(bucketQueries)
		if queries.Get(idKey(id)) == nil {
			return fmt.Errorf("query %d: %w", id, ErrNotFound)
		}
		if err := queries.Delete(idKey(id)); err != nil {
			return fmt.Errorf("delete query: %w", err)
		}

		vizs, err := visualizationsForQuery(tx, id)
		if err != nil {
			return err
		}
		vb := tx.Bucket(bucketVisualizations)
		for _, v := range vizs {
			if err := vb.Delete(idKey(v.ID)); err != nil {
				return fmt.Errorf("delete visualization: %w", err)
			}
		}

		return tx.Bucket(bucketResults).Delete(idKey(id))
	})
}

func queryExists(tx *bolt.Tx, id int64) bool {
	return tx.Bucket(bucketQueries).Get(idKey(id)) != nil
}
