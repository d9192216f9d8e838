package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/mock/gomock"

	"hemalink/internal/bloodbank/events"
	eventmocks "hemalink/internal/bloodbank/events/mocks"
	"hemalink/internal/bloodbank/metrics"
	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/service"
	"hemalink/internal/storage/memory"
	dErrors "hemalink/pkg/domain-errors"
	"hemalink/pkg/requestcontext"
)

var today = time.Date(2025, 2, 10, 9, 30, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	ctrl      *gomock.Controller
	publisher *eventmocks.MockPublisher
	metrics   *metrics.Metrics
	service   *service.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), today)
	s.ctrl = gomock.NewController(s.T())
	s.publisher = eventmocks.NewMockPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = service.New(memory.New(),
		service.WithMetrics(s.metrics),
		service.WithNotifier(events.NewNotifier(s.publisher, nil)),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) expectNotification(kind events.Kind) {
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, n events.Notification) error {
			s.Equal(kind, n.Kind)
			s.Equal(kind.Subject(), n.Subject)
			s.Equal(today, n.OccurredAt)
			return nil
		})
}

func (s *ServiceSuite) registerDonor(group, city string) *models.Donor {
	s.expectNotification(events.KindDonorRegistered)
	donor, err := s.service.RegisterDonor(s.ctx, models.DonorRegistration{
		Name: "Donor " + group, Email: "donor@example.com", Age: 30,
		BloodGroup: group, Weight: 65, City: city, State: "Maharashtra", Pincode: "411001",
	})
	s.Require().NoError(err)
	return donor
}

// =============================================================================
// Donors
// =============================================================================

func (s *ServiceSuite) TestRegisterDonor() {
	s.Run("stores an available donor and joins the group's donor set", func() {
		donor := s.registerDonor("O-", "Pune")
		s.Regexp(`^DON-[0-9A-F]{8}$`, donor.ID)
		s.True(donor.Available)
		s.Equal(models.DonorStatusActive, donor.Status)
		s.Nil(donor.LastDonation)

		entries, err := s.service.Inventory(s.ctx)
		s.Require().NoError(err)
		s.Equal(models.ONegative, entries[7].BloodGroup)
		s.Equal([]string{donor.ID}, entries[7].Donors)
		s.Equal(0, entries[7].Units)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.DonorsRegistered))
	})

	s.Run("rejects an underage donor without publishing", func() {
		_, err := s.service.RegisterDonor(s.ctx, models.DonorRegistration{
			Name: "Young", Age: 17, BloodGroup: "A+", Weight: 60,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an unknown blood group", func() {
		_, err := s.service.RegisterDonor(s.ctx, models.DonorRegistration{
			Name: "Unknown", Age: 30, BloodGroup: "C+", Weight: 60,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestRegisterDonorSurvivesPublishFailure() {
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	donor, err := s.service.RegisterDonor(s.ctx, models.DonorRegistration{
		Name: "Asha", Age: 40, BloodGroup: "B+", Weight: 70,
	})
	s.Require().NoError(err)
	s.NotEmpty(donor.ID)
}

func (s *ServiceSuite) TestDonorLifecycle() {
	donor := s.registerDonor("A+", "Pune")

	s.Run("update changes only the given fields", func() {
		city := "Nagpur"
		unavailable := false
		updated, err := s.service.UpdateDonor(s.ctx, donor.ID, models.DonorUpdate{City: &city, Available: &unavailable})
		s.Require().NoError(err)
		s.Equal("Nagpur", updated.City)
		s.False(updated.Available)
		s.Equal("Maharashtra", updated.State)
	})

	s.Run("deactivate then deactivate again conflicts", func() {
		updated, err := s.service.DeactivateDonor(s.ctx, donor.ID)
		s.Require().NoError(err)
		s.Equal(models.DonorStatusInactive, updated.Status)

		_, err = s.service.DeactivateDonor(s.ctx, donor.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("reactivate restores the donor", func() {
		updated, err := s.service.ReactivateDonor(s.ctx, donor.ID)
		s.Require().NoError(err)
		s.Equal(models.DonorStatusActive, updated.Status)
	})

	s.Run("unknown donor is not found", func() {
		_, err := s.service.DeactivateDonor(s.ctx, "DON-MISSING")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.service.GetDonor(s.ctx, "DON-MISSING")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// blockingProducer stands in for a broker that stopped acknowledging.
type blockingProducer struct{}

func (blockingProducer) ProduceSync(ctx context.Context, _ ...*kgo.Record) kgo.ProduceResults {
	<-ctx.Done()
	return kgo.ProduceResults{{Err: ctx.Err()}}
}

func (s *ServiceSuite) TestStalledBrokerDoesNotBlockRegistration() {
	svc := service.New(memory.New(), service.WithNotifier(events.NewNotifier(
		events.NewKafkaPublisher(blockingProducer{}, "hemalink.notifications"),
		nil,
		events.WithPublishTimeout(50*time.Millisecond),
	)))

	type outcome struct {
		donor *models.Donor
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		donor, err := svc.RegisterDonor(context.Background(), models.DonorRegistration{
			Name: "Kiran", Age: 30, BloodGroup: "B+", Weight: 60, City: "Pune",
		})
		done <- outcome{donor, err}
	}()

	select {
	case got := <-done:
		s.Require().NoError(got.err)
		stored, err := svc.GetDonor(s.ctx, got.donor.ID)
		s.Require().NoError(err)
		s.Equal("Kiran", stored.Name)
	case <-time.After(2 * time.Second):
		s.FailNow("RegisterDonor blocked on a stalled notification")
	}
}

func (s *ServiceSuite) TestDonationIntervalAcrossClockZones() {
	cases := []struct {
		name  string
		first time.Time
	}{
		{"late evening west of UTC", time.Date(2025, 3, 1, 22, 0, 0, 0, time.FixedZone("UTC-5", -5*60*60))},
		{"early morning east of UTC", time.Date(2025, 3, 1, 2, 0, 0, 0, time.FixedZone("UTC+5:30", 5*60*60+30*60))},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			donor := s.registerDonor("A-", "Delhi")
			first := tc.first

			s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
			_, err := s.service.RecordDonation(requestcontext.WithTime(s.ctx, first), donor.ID, models.DonationInput{})
			s.Require().NoError(err)

			_, err = s.service.RecordDonation(requestcontext.WithTime(s.ctx, first.AddDate(0, 0, 55)), donor.ID, models.DonationInput{})
			s.True(dErrors.HasCode(err, dErrors.CodeConflict), "day 55 is too soon")

			s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
			_, err = s.service.RecordDonation(requestcontext.WithTime(s.ctx, first.AddDate(0, 0, 56)), donor.ID, models.DonationInput{})
			s.NoError(err, "day 56 is allowed")
		})
	}
}

func (s *ServiceSuite) TestRecordDonation() {
	donor := s.registerDonor("B-", "Pune")

	s.Run("first donation adds stock and dates the donor", func() {
		s.expectNotification(events.KindDonationRecorded)
		res, err := s.service.RecordDonation(s.ctx, donor.ID, models.DonationInput{Units: 2})
		s.Require().NoError(err)
		s.Regexp(`^DN-[0-9A-F]{8}$`, res.Donation.ID)
		s.Equal(models.DefaultDonationCenter, res.Donation.DonationCenter)
		s.Equal(2, res.Inventory.Units)
		s.Equal(1, res.Donor.TotalDonations)
		s.Require().NotNil(res.Donor.LastDonation)
		s.Equal(models.CalendarDate(today), *res.Donor.LastDonation)
	})

	s.Run("second donation inside the interval conflicts and changes nothing", func() {
		_, err := s.service.RecordDonation(s.ctx, donor.ID, models.DonationInput{})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		dash, err := s.service.DonorDashboard(s.ctx, donor.ID)
		s.Require().NoError(err)
		s.Len(dash.Donations, 1)
		s.False(dash.CanDonateNow)
		s.Require().NotNil(dash.NextEligibleDate)
		s.Equal(models.CalendarDate(today).AddDate(0, 0, 56), *dash.NextEligibleDate)
	})

	s.Run("donation 56 days later is accepted", func() {
		later := requestcontext.WithTime(s.ctx, today.AddDate(0, 0, 56))
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)
		res, err := s.service.RecordDonation(later, donor.ID, models.DonationInput{})
		s.Require().NoError(err)
		s.Equal(1, res.Donation.Units)
		s.Equal(3, res.Inventory.Units)
		s.Equal(2, res.Donor.TotalDonations)
	})

	s.Run("negative units are rejected", func() {
		later := requestcontext.WithTime(s.ctx, today.AddDate(1, 0, 0))
		_, err := s.service.RecordDonation(later, donor.ID, models.DonationInput{Units: -1})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("donations list newest first", func() {
		donations, err := s.service.ListDonations(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(donations, 2)
		s.True(donations[0].DonationDate.After(donations[1].DonationDate))
	})
}

func (s *ServiceSuite) TestSearchDonors() {
	pune := s.registerDonor("O+", "Pune")
	s.registerDonor("A+", "Pune")
	inactive := s.registerDonor("O+", "Mumbai")
	_, err := s.service.DeactivateDonor(s.ctx, inactive.ID)
	s.Require().NoError(err)

	s.Run("group and city", func() {
		found, err := s.service.SearchDonors(s.ctx, "O+", "pune")
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal(pune.ID, found[0].ID)
	})

	s.Run("pincode", func() {
		found, err := s.service.SearchDonors(s.ctx, "", "4110")
		s.Require().NoError(err)
		s.Len(found, 2)
	})

	s.Run("invalid group", func() {
		_, err := s.service.SearchDonors(s.ctx, "Z", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Requests
// =============================================================================

func (s *ServiceSuite) TestSubmitRequest() {
	donor := s.registerDonor("O-", "Pune")
	requestor, err := s.service.RegisterRequestor(s.ctx, models.RequestorRegistration{Name: "City Hospital"})
	s.Require().NoError(err)
	s.Equal("Individual", requestor.Organization)

	s.Run("registered requestor gets a counted request with matched donors", func() {
		s.expectNotification(events.KindRequestSubmitted)
		details, err := s.service.SubmitRequest(s.ctx, models.BloodRequestInput{
			RequestorID: requestor.ID, PatientName: "Patient", BloodGroup: "AB+",
			UnitsNeeded: 2, City: "Pune", Urgency: "high",
		})
		s.Require().NoError(err)
		s.Regexp(`^BR-[0-9A-F]{8}$`, details.Request.ID)
		s.Equal(models.RequestStatusPending, details.Request.Status)
		s.Equal([]string{donor.ID}, details.Request.MatchedDonors)
		s.True(details.Report.Fulfillable)
		s.Equal(0, details.Report.StockUnits)

		dash, err := s.service.RequestorDashboard(s.ctx, requestor.ID)
		s.Require().NoError(err)
		s.Equal(1, dash.Requestor.TotalRequests)
		s.Len(dash.Requests, 1)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.RequestsSubmitted.WithLabelValues("high")))
	})

	s.Run("guest request", func() {
		s.expectNotification(events.KindRequestSubmitted)
		details, err := s.service.SubmitRequest(s.ctx, models.BloodRequestInput{
			PatientName: "Walk In", BloodGroup: "A-", UnitsNeeded: 1,
		})
		s.Require().NoError(err)
		s.Equal(models.GuestRequestor, details.Request.RequestorID)
		s.Equal(models.UrgencyNormal, details.Request.Urgency)
	})

	s.Run("zero units is a validation error", func() {
		_, err := s.service.SubmitRequest(s.ctx, models.BloodRequestInput{
			PatientName: "Patient", BloodGroup: "A+", UnitsNeeded: 0,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("requests list newest first", func() {
		later := requestcontext.WithTime(s.ctx, today.Add(time.Hour))
		s.expectNotification(events.KindRequestSubmitted)
		latest, err := s.service.SubmitRequest(later, models.BloodRequestInput{
			PatientName: "Latest", BloodGroup: "B+", UnitsNeeded: 1,
		})
		s.Require().NoError(err)

		requests, err := s.service.ListRequests(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(requests, 3)
		s.Equal(latest.Request.ID, requests[0].ID)
	})
}

func (s *ServiceSuite) TestFulfillRequest() {
	s.expectNotification(events.KindRequestSubmitted)
	details, err := s.service.SubmitRequest(s.ctx, models.BloodRequestInput{
		PatientName: "Patient", BloodGroup: "O+", UnitsNeeded: 3,
	})
	s.Require().NoError(err)
	_, err = s.service.AdjustInventory(s.ctx, "O+", 10, "add")
	s.Require().NoError(err)
	id := details.Request.ID

	s.Run("partial fulfillment does not notify", func() {
		res, err := s.service.FulfillRequest(s.ctx, id, 1)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusPartial, res.Request.Status)
		s.Equal(9, res.Inventory.Units)
	})

	s.Run("completing the request notifies", func() {
		s.expectNotification(events.KindRequestFulfilled)
		res, err := s.service.FulfillRequest(s.ctx, id, 2)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusFulfilled, res.Request.Status)
	})

	s.Run("details carry a fresh report", func() {
		got, err := s.service.RequestDetails(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(models.RequestStatusFulfilled, got.Request.Status)
		s.Equal(7, got.Report.StockUnits)
	})

	s.Run("missing request", func() {
		_, err := s.service.RequestDetails(s.ctx, "BR-MISSING")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Inventory and statistics
// =============================================================================

func (s *ServiceSuite) TestAdjustInventory() {
	s.Run("parses group and direction", func() {
		entry, err := s.service.AdjustInventory(s.ctx, "ab-", 5, " ADD ")
		s.Require().NoError(err)
		s.Equal(models.ABNegative, entry.BloodGroup)
		s.Equal(5, entry.Units)
	})

	s.Run("unknown direction", func() {
		_, err := s.service.AdjustInventory(s.ctx, "A+", 5, "sideways")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown group", func() {
		_, err := s.service.AdjustInventory(s.ctx, "Q", 5, "add")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestMatchReport() {
	s.registerDonor("O-", "Pune")

	s.Run("ad-hoc need is matched without storing a request", func() {
		report, err := s.service.MatchReport(s.ctx, "AB+", 2, "pune")
		s.Require().NoError(err)
		s.Equal(1, report.TotalCompatible)
		s.True(report.Fulfillable)

		requests, err := s.service.ListRequests(s.ctx)
		s.Require().NoError(err)
		s.Empty(requests)
	})

	s.Run("units must be positive", func() {
		for _, units := range []int{0, -3} {
			_, err := s.service.MatchReport(s.ctx, "AB+", units, "")
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "units=%d", units)
		}
	})

	s.Run("unknown group is rejected", func() {
		_, err := s.service.MatchReport(s.ctx, "C+", 1, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestStatistics() {
	s.registerDonor("O+", "Pune")
	for group, units := range map[string]int{"A+": 50, "O+": 19, "O-": 20} {
		_, err := s.service.AdjustInventory(s.ctx, group, units, "add")
		s.Require().NoError(err)
	}
	s.expectNotification(events.KindRequestSubmitted)
	_, err := s.service.SubmitRequest(s.ctx, models.BloodRequestInput{
		PatientName: "Patient", BloodGroup: "A+", UnitsNeeded: 1,
	})
	s.Require().NoError(err)

	stats, err := s.service.Statistics(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, stats.TotalDonors)
	s.Equal(1, stats.TotalRequests)
	s.Equal(1, stats.ActiveRequests)
	s.Equal(0, stats.FulfilledRequests)
	s.Equal(89, stats.TotalUnits)
	s.Equal([]models.BloodGroup{
		models.ANegative, models.BPositive, models.BNegative,
		models.ABPositive, models.ABNegative, models.OPositive,
	}, stats.CriticalGroups)
	s.Len(stats.Inventory, len(models.BloodGroups))
}

func (s *ServiceSuite) TestHealth() {
	s.NoError(s.service.Health(s.ctx))
	s.Equal("memory", s.service.Backend())
}
