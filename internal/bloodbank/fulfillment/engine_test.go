package fulfillment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"hemalink/internal/bloodbank/fulfillment"
	"hemalink/internal/bloodbank/inventory"
	"hemalink/internal/bloodbank/metrics"
	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/store"
	"hemalink/internal/storage"
	"hemalink/internal/storage/memory"
	dErrors "hemalink/pkg/domain-errors"
	"hemalink/pkg/requestcontext"
)

type EngineSuite struct {
	suite.Suite
	ctx     context.Context
	backend *memory.Store
	records *store.Records
	metrics *metrics.Metrics
	engine  *fulfillment.Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 2, 10, 9, 0, 0, 0, time.UTC))
	s.backend = memory.New()
	s.records = store.New(storage.NewGuard(s.backend, nil))
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.engine = s.newEngine(s.backend)
}

func (s *EngineSuite) newEngine(tx storage.Tx) *fulfillment.Engine {
	ledger := inventory.New(tx, s.records)
	return fulfillment.New(tx, s.records, ledger, fulfillment.WithMetrics(s.metrics))
}

func (s *EngineSuite) givenDonor(id string, group models.BloodGroup, mutate ...func(*models.Donor)) {
	d := &models.Donor{
		ID: id, BloodGroup: group, Age: 30, City: "Chennai", State: "Tamil Nadu",
		Available: true, Status: models.DonorStatusActive,
	}
	for _, m := range mutate {
		m(d)
	}
	s.Require().NoError(s.records.PutDonor(s.ctx, d))
}

func (s *EngineSuite) givenStock(group models.BloodGroup, units int) {
	s.Require().NoError(s.records.PutInventory(s.ctx, &models.InventoryEntry{BloodGroup: group, Units: units, Donors: []string{}}))
}

func (s *EngineSuite) givenRequest(id string, group models.BloodGroup, needed int) {
	req, err := models.NewBloodRequest(id, models.BloodRequestInput{
		PatientName: "Patient", BloodGroup: group.String(), UnitsNeeded: needed,
	}, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	s.Require().NoError(s.records.PutRequest(s.ctx, req))
}

func (s *EngineSuite) stock(group models.BloodGroup) int {
	entry, err := s.records.GetInventory(s.ctx, group)
	s.Require().NoError(err)
	return entry.Units
}

// =============================================================================
// Match reports
// =============================================================================

func (s *EngineSuite) TestMatchReportDonorPoolMakesRequestFulfillable() {
	s.givenDonor("DON-O", models.ONegative)

	report, err := s.engine.BuildMatchReport(s.ctx, models.ABPositive, 2, "")
	s.Require().NoError(err)
	s.Equal(0, report.StockUnits)
	s.Equal(1, report.TotalCompatible)
	s.True(report.Fulfillable)
	s.Require().Len(report.Donors, 1)
	s.Equal("DON-O", report.Donors[0].ID)
	s.True(report.Donors[0].CanDonateNow)
}

func (s *EngineSuite) TestMatchReportWithoutStockOrDonorsIsNotFulfillable() {
	s.givenStock(models.ONegative, 3)
	s.givenDonor("DON-A", models.APositive)

	report, err := s.engine.BuildMatchReport(s.ctx, models.ONegative, 5, "")
	s.Require().NoError(err)
	s.Equal(3, report.StockUnits)
	s.Equal(0, report.TotalCompatible)
	s.Empty(report.Donors)
	s.False(report.Fulfillable)
}

func (s *EngineSuite) TestMatchReportStockAloneIsEnough() {
	s.givenStock(models.BPositive, 10)

	report, err := s.engine.BuildMatchReport(s.ctx, models.BPositive, 10, "")
	s.Require().NoError(err)
	s.True(report.Fulfillable)
}

func (s *EngineSuite) TestMatchReportKeepsTopTenByScore() {
	for i := 0; i < 12; i++ {
		donations := i
		s.givenDonor(fmt.Sprintf("DON-%02d", i), models.OPositive, func(d *models.Donor) {
			d.TotalDonations = donations
		})
	}

	report, err := s.engine.BuildMatchReport(s.ctx, models.OPositive, 1, "chennai")
	s.Require().NoError(err)
	s.Equal(12, report.TotalCompatible)
	s.Require().Len(report.Donors, models.MatchReportSize)
	for i := 1; i < len(report.Donors); i++ {
		s.GreaterOrEqual(report.Donors[i-1].MatchScore, report.Donors[i].MatchScore)
	}
	s.Equal(140, report.Donors[0].MatchScore)
	s.Equal(1, testutil.CollectAndCount(s.metrics.MatchReportDuration))
}

func (s *EngineSuite) TestMatchReportAppliesLocation() {
	s.givenDonor("DON-1", models.ONegative)
	s.givenDonor("DON-2", models.ONegative, func(d *models.Donor) { d.City, d.State = "Pune", "Maharashtra" })

	report, err := s.engine.BuildMatchReport(s.ctx, models.ONegative, 1, "pune")
	s.Require().NoError(err)
	s.Equal(1, report.TotalCompatible)
	s.Equal("DON-2", report.Donors[0].ID)
}

// =============================================================================
// Fulfillment
// =============================================================================

func (s *EngineSuite) TestRecordFulfillmentAdvancesMonotonically() {
	s.givenRequest("BR-1", models.OPositive, 4)
	s.givenStock(models.OPositive, 10)

	res, err := s.engine.RecordFulfillment(s.ctx, "BR-1", 1)
	s.Require().NoError(err)
	s.Equal(models.RequestStatusPartial, res.Request.Status)
	s.Equal(9, s.stock(models.OPositive))

	res, err = s.engine.RecordFulfillment(s.ctx, "BR-1", 3)
	s.Require().NoError(err)
	s.Equal(models.RequestStatusFulfilled, res.Request.Status)
	s.Equal(4, res.Request.FulfilledUnits)
	s.Equal(6, s.stock(models.OPositive))

	stored, err := s.records.GetRequest(s.ctx, "BR-1")
	s.Require().NoError(err)
	s.Equal(models.RequestStatusFulfilled, stored.Status)

	s.Equal(4.0, testutil.ToFloat64(s.metrics.UnitsDebited.WithLabelValues("O+")))
}

func (s *EngineSuite) TestRecordFulfillmentOvershootsAndClampsStock() {
	s.givenRequest("BR-1", models.ABNegative, 2)
	s.givenStock(models.ABNegative, 3)

	res, err := s.engine.RecordFulfillment(s.ctx, "BR-1", 5)
	s.Require().NoError(err)
	s.Equal(5, res.Request.FulfilledUnits)
	s.Equal(models.RequestStatusFulfilled, res.Request.Status)
	s.Equal(3, res.Debited)
	s.Equal(0, res.Inventory.Units)
}

func (s *EngineSuite) TestRecordFulfillmentZeroUnitsStaysPending() {
	s.givenRequest("BR-1", models.APositive, 2)

	res, err := s.engine.RecordFulfillment(s.ctx, "BR-1", 0)
	s.Require().NoError(err)
	s.Equal(models.RequestStatusPending, res.Request.Status)
}

func (s *EngineSuite) TestRecordFulfillmentErrors() {
	s.Run("unknown request is not found", func() {
		_, err := s.engine.RecordFulfillment(s.ctx, "BR-404", 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("negative units are rejected", func() {
		s.givenRequest("BR-NEG", models.APositive, 2)
		_, err := s.engine.RecordFulfillment(s.ctx, "BR-NEG", -1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("fulfilled request conflicts and leaves stock alone", func() {
		s.givenRequest("BR-DONE", models.BNegative, 1)
		s.givenStock(models.BNegative, 5)
		_, err := s.engine.RecordFulfillment(s.ctx, "BR-DONE", 1)
		s.Require().NoError(err)

		_, err = s.engine.RecordFulfillment(s.ctx, "BR-DONE", 1)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal(4, s.stock(models.BNegative))
	})
}

func (s *EngineSuite) TestConcurrentFulfillmentsLoseNothing() {
	s.givenRequest("BR-1", models.ONegative, 100)
	s.givenStock(models.ONegative, 100)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.RecordFulfillment(s.ctx, "BR-1", 2)
			s.NoError(err)
		}()
	}
	wg.Wait()

	req, err := s.records.GetRequest(s.ctx, "BR-1")
	s.Require().NoError(err)
	s.Equal(40, req.FulfilledUnits)
	s.Equal(60, s.stock(models.ONegative))
}

// writeFails hands fn a store whose writes to one collection fail, so the
// transaction aborts after any earlier writes were staged.
type writeFails struct {
	backend    storage.Backend
	collection storage.Collection
}

func (f writeFails) RunInTx(ctx context.Context, fn func(context.Context, storage.RecordStore) error, keys ...storage.Key) error {
	return f.backend.RunInTx(ctx, func(ctx context.Context, rs storage.RecordStore) error {
		return fn(ctx, failingCollection{RecordStore: rs, collection: f.collection})
	}, keys...)
}

type failingCollection struct {
	storage.RecordStore
	collection storage.Collection
}

func (f failingCollection) Put(ctx context.Context, c storage.Collection, key string, data []byte) error {
	if c == f.collection {
		return errors.New(c.String() + " write failed")
	}
	return f.RecordStore.Put(ctx, c, key, data)
}

func (s *EngineSuite) TestFailedWriteAppliesNothing() {
	s.Run("request write fails after the stock debit was staged", func() {
		s.givenRequest("BR-REQ", models.APositive, 2)
		s.givenStock(models.APositive, 5)

		engine := s.newEngine(writeFails{backend: s.backend, collection: storage.Requests})
		_, err := engine.RecordFulfillment(s.ctx, "BR-REQ", 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		s.Equal(5, s.stock(models.APositive), "staged debit must not reach the store")
		req, err := s.records.GetRequest(s.ctx, "BR-REQ")
		s.Require().NoError(err)
		s.Equal(0, req.FulfilledUnits)
		s.Equal(models.RequestStatusPending, req.Status)
	})

	s.Run("stock write fails", func() {
		s.givenRequest("BR-INV", models.BPositive, 2)
		s.givenStock(models.BPositive, 5)

		engine := s.newEngine(writeFails{backend: s.backend, collection: storage.Inventory})
		_, err := engine.RecordFulfillment(s.ctx, "BR-INV", 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))

		req, err := s.records.GetRequest(s.ctx, "BR-INV")
		s.Require().NoError(err)
		s.Equal(0, req.FulfilledUnits)
		s.Equal(5, s.stock(models.BPositive))
	})
}
