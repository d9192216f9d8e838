package storage_test

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks RecordStore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"hemalink/internal/storage"
	"hemalink/internal/storage/mocks"
	"hemalink/pkg/platform/sentinel"
)

type GuardSuite struct {
	suite.Suite
	ctx     context.Context
	backend *mocks.MockRecordStore
	guard   *storage.Guard
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.backend = mocks.NewMockRecordStore(ctrl)
	s.guard = storage.NewGuard(s.backend, nil)
}

func (s *GuardSuite) TestGet() {
	s.Run("passes records through", func() {
		s.backend.EXPECT().Get(gomock.Any(), storage.Donors, "DON-1").Return([]byte(`{}`), nil)
		data, err := s.guard.Get(s.ctx, storage.Donors, "DON-1")
		s.Require().NoError(err)
		s.Equal(`{}`, string(data))
	})

	s.Run("backend failure reads as not found", func() {
		s.backend.EXPECT().Get(gomock.Any(), storage.Requests, "BR-1").Return(nil, errors.New("connection reset"))
		_, err := s.guard.Get(s.ctx, storage.Requests, "BR-1")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("wrapped not found stays not found", func() {
		s.backend.EXPECT().Get(gomock.Any(), storage.Requests, "BR-2").Return(nil, fmt.Errorf("get: %w", sentinel.ErrNotFound))
		_, err := s.guard.Get(s.ctx, storage.Requests, "BR-2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *GuardSuite) TestScan() {
	s.Run("backend failure reads as empty", func() {
		s.backend.EXPECT().Scan(gomock.Any(), storage.Donors).Return(nil, errors.New("timeout"))
		docs, err := s.guard.Scan(s.ctx, storage.Donors)
		s.Require().NoError(err)
		s.NotNil(docs)
		s.Empty(docs)
	})
}

func (s *GuardSuite) TestPut() {
	s.Run("failure is returned", func() {
		boom := errors.New("read only")
		s.backend.EXPECT().Put(gomock.Any(), storage.Inventory, "O-", gomock.Any()).Return(boom)
		err := s.guard.Put(s.ctx, storage.Inventory, "O-", []byte(`{}`))
		s.ErrorIs(err, boom)
	})
}
