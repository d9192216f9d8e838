// Package storagetest holds the conformance suite every storage backend must
// pass. Running the same cases against memory, Redis and Postgres is what
// makes the backends interchangeable.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"hemalink/internal/storage"
	"hemalink/pkg/platform/sentinel"
)

// Factory returns a fresh, empty backend for each test.
type Factory func(t *testing.T) storage.Backend

// Run executes the conformance suite against backends built by factory.
func Run(t *testing.T, factory Factory) {
	suite.Run(t, &BackendSuite{factory: factory})
}

type BackendSuite struct {
	suite.Suite
	factory Factory
	backend storage.Backend
	ctx     context.Context
}

func (s *BackendSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = s.factory(s.T())
}

func (s *BackendSuite) TearDownTest() {
	s.Require().NoError(s.backend.Close())
}

type counter struct {
	ID string `json:"id"`
	N  int    `json:"n"`
}

func doc(id string, n int) []byte {
	b, _ := json.Marshal(counter{ID: id, N: n})
	return b
}

func (s *BackendSuite) decode(data []byte) counter {
	var c counter
	s.Require().NoError(json.Unmarshal(data, &c))
	return c
}

// =============================================================================
// Point reads and writes
// =============================================================================

func (s *BackendSuite) TestGetPut() {
	s.Run("missing key is not found", func() {
		_, err := s.backend.Get(s.ctx, storage.Donors, "DON-MISSING")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("put then get returns the document", func() {
		s.Require().NoError(s.backend.Put(s.ctx, storage.Donors, "DON-1", doc("DON-1", 1)))
		data, err := s.backend.Get(s.ctx, storage.Donors, "DON-1")
		s.Require().NoError(err)
		s.JSONEq(string(doc("DON-1", 1)), string(data))
	})

	s.Run("put upserts", func() {
		s.Require().NoError(s.backend.Put(s.ctx, storage.Donors, "DON-2", doc("DON-2", 1)))
		s.Require().NoError(s.backend.Put(s.ctx, storage.Donors, "DON-2", doc("DON-2", 7)))
		data, err := s.backend.Get(s.ctx, storage.Donors, "DON-2")
		s.Require().NoError(err)
		s.Equal(7, s.decode(data).N)
	})

	s.Run("collections are isolated", func() {
		s.Require().NoError(s.backend.Put(s.ctx, storage.Inventory, "SHARED", doc("inv", 1)))
		_, err := s.backend.Get(s.ctx, storage.Requests, "SHARED")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// =============================================================================
// Scans
// =============================================================================

func (s *BackendSuite) TestScan() {
	s.Run("empty collection scans empty", func() {
		docs, err := s.backend.Scan(s.ctx, storage.Donations)
		s.Require().NoError(err)
		s.Empty(docs)
	})

	s.Run("scan preserves first insertion order across updates", func() {
		for i, id := range []string{"BR-C", "BR-A", "BR-B"} {
			s.Require().NoError(s.backend.Put(s.ctx, storage.Requests, id, doc(id, i)))
		}
		s.Require().NoError(s.backend.Put(s.ctx, storage.Requests, "BR-C", doc("BR-C", 99)))

		docs, err := s.backend.Scan(s.ctx, storage.Requests)
		s.Require().NoError(err)
		s.Require().Len(docs, 3)
		s.Equal("BR-C", s.decode(docs[0]).ID)
		s.Equal(99, s.decode(docs[0]).N)
		s.Equal("BR-A", s.decode(docs[1]).ID)
		s.Equal("BR-B", s.decode(docs[2]).ID)
	})
}

// =============================================================================
// Transactions
// =============================================================================

func (s *BackendSuite) TestRunInTx() {
	s.Run("commit makes every write visible", func() {
		err := s.backend.RunInTx(s.ctx, func(ctx context.Context, tx storage.RecordStore) error {
			if err := tx.Put(ctx, storage.Requests, "BR-TX", doc("BR-TX", 2)); err != nil {
				return err
			}
			return tx.Put(ctx, storage.Inventory, "A+", doc("A+", 8))
		}, storage.KeyOf(storage.Requests, "BR-TX"), storage.KeyOf(storage.Inventory, "A+"))
		s.Require().NoError(err)

		req, err := s.backend.Get(s.ctx, storage.Requests, "BR-TX")
		s.Require().NoError(err)
		s.Equal(2, s.decode(req).N)
		inv, err := s.backend.Get(s.ctx, storage.Inventory, "A+")
		s.Require().NoError(err)
		s.Equal(8, s.decode(inv).N)
	})

	s.Run("failure applies nothing", func() {
		boom := errors.New("abort")
		err := s.backend.RunInTx(s.ctx, func(ctx context.Context, tx storage.RecordStore) error {
			if err := tx.Put(ctx, storage.Requests, "BR-ROLLBACK", doc("BR-ROLLBACK", 1)); err != nil {
				return err
			}
			return boom
		}, storage.KeyOf(storage.Requests, "BR-ROLLBACK"))
		s.ErrorIs(err, boom)

		_, err = s.backend.Get(s.ctx, storage.Requests, "BR-ROLLBACK")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("reads inside the transaction see its own writes", func() {
		s.Require().NoError(s.backend.Put(s.ctx, storage.Donors, "DON-OLD", doc("DON-OLD", 1)))
		err := s.backend.RunInTx(s.ctx, func(ctx context.Context, tx storage.RecordStore) error {
			s.Require().NoError(tx.Put(ctx, storage.Donors, "DON-OLD", doc("DON-OLD", 5)))
			s.Require().NoError(tx.Put(ctx, storage.Donors, "DON-NEW", doc("DON-NEW", 1)))

			data, err := tx.Get(ctx, storage.Donors, "DON-OLD")
			s.Require().NoError(err)
			s.Equal(5, s.decode(data).N)

			docs, err := tx.Scan(ctx, storage.Donors)
			s.Require().NoError(err)
			ids := make([]string, 0, len(docs))
			for _, d := range docs {
				ids = append(ids, s.decode(d).ID)
			}
			s.Contains(ids, "DON-NEW")
			s.Contains(ids, "DON-OLD")
			return nil
		}, storage.KeyOf(storage.Donors, "DON-OLD"), storage.KeyOf(storage.Donors, "DON-NEW"))
		s.Require().NoError(err)
	})

	s.Run("cancelled context never runs fn", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()
		called := false
		err := s.backend.RunInTx(ctx, func(context.Context, storage.RecordStore) error {
			called = true
			return nil
		}, storage.KeyOf(storage.Inventory, "B+"))
		s.Error(err)
		s.False(called)
	})
}

// TestConcurrentReadModifyWrite is the lost-update check: every increment
// runs get-then-put inside RunInTx on the same key.
func (s *BackendSuite) TestConcurrentReadModifyWrite() {
	const workers = 20
	key := storage.KeyOf(storage.Inventory, "O-")

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.backend.RunInTx(s.ctx, func(ctx context.Context, tx storage.RecordStore) error {
				current := counter{ID: "O-"}
				data, err := tx.Get(ctx, key.Collection, key.ID)
				switch {
				case err == nil:
					if err := json.Unmarshal(data, &current); err != nil {
						return err
					}
				case !errors.Is(err, sentinel.ErrNotFound):
					return fmt.Errorf("read counter: %w", err)
				}
				current.N++
				return tx.Put(ctx, key.Collection, key.ID, doc(current.ID, current.N))
			}, key)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	data, err := s.backend.Get(s.ctx, key.Collection, key.ID)
	s.Require().NoError(err)
	s.Equal(workers, s.decode(data).N)
}

func (s *BackendSuite) TestHealth() {
	s.NoError(s.backend.Health(s.ctx))
	s.NotEmpty(s.backend.Name())
}
