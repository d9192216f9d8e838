package handler_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"hemalink/internal/bloodbank/fulfillment"
	"hemalink/internal/bloodbank/handler"
	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/service"
	"hemalink/internal/storage/memory"
	"hemalink/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	r := chi.NewRouter()
	handler.New(service.New(memory.New()), nil).Register(r)
	s.router = r
}

func (s *HandlerSuite) registerDonor(group string) *models.Donor {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/donors", map[string]any{
		"name": "Sneha", "age": 29, "blood_group": group, "weight": 55, "city": "Chennai", "state": "Tamil Nadu",
	})
	rr := testutil.DoRequest(s.router, req)
	s.Require().Equal(http.StatusCreated, rr.Code)
	return testutil.UnmarshalResponse[models.Donor](s.T(), rr)
}

func (s *HandlerSuite) TestDonorEndpoints() {
	donor := s.registerDonor("O-")

	s.Run("register rejects unknown fields", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/donors", `{"name":"x","shoe_size":9}`)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("register validates age", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/donors", map[string]any{
			"name": "Old", "age": 70, "blood_group": "A+", "weight": 70,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("dashboard", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/donors/"+donor.ID))
		testutil.AssertStatusOK(s.T(), rr)
		dash := testutil.UnmarshalResponse[service.DonorDashboard](s.T(), rr)
		s.Equal(donor.ID, dash.Donor.ID)
		s.True(dash.CanDonateNow)
		s.Empty(dash.Donations)
	})

	s.Run("unknown donor is 404", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/donors/DON-NOPE"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("search by location", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/donors/search?blood_group=O-&location=chennai"))
		testutil.AssertStatusOK(s.T(), rr)
		found := testutil.UnmarshalResponse[[]models.Donor](s.T(), rr)
		s.Len(*found, 1)
	})

	s.Run("patch profile", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPatch, "/donors/"+donor.ID, map[string]any{"phone": "123"})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "phone", "123")
	})

	s.Run("donation with empty body then a conflicting repeat", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/donors/"+donor.ID+"/donations"))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		res := testutil.UnmarshalResponse[service.DonationResult](s.T(), rr)
		s.Equal(1, res.Donation.Units)
		s.Equal(1, res.Inventory.Units)

		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/donors/"+donor.ID+"/donations", map[string]any{"units": 1}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("deactivate twice conflicts", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/donors/"+donor.ID+"/deactivate"))
		testutil.AssertStatusOK(s.T(), rr)
		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/donors/"+donor.ID+"/deactivate"))
		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
		rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/donors/"+donor.ID+"/reactivate"))
		testutil.AssertStatusOK(s.T(), rr)
	})
}

func (s *HandlerSuite) TestRequestEndpoints() {
	s.registerDonor("O-")

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/requestors", map[string]any{
		"name": "Dr. Reddy", "organization": "City General Hospital",
	}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	requestor := testutil.UnmarshalResponse[models.Requestor](s.T(), rr)

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/requests", map[string]any{
		"requestor_id": requestor.ID, "patient_name": "Ramesh", "blood_group": "AB+",
		"units_needed": 2, "city": "Chennai", "urgency": "critical",
	}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	submitted := testutil.UnmarshalResponse[service.RequestDetails](s.T(), rr)
	s.True(submitted.Report.Fulfillable)
	s.Len(submitted.Request.MatchedDonors, 1)
	id := submitted.Request.ID

	s.Run("details", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/requests/"+id))
		testutil.AssertStatusOK(s.T(), rr)
		details := testutil.UnmarshalResponse[service.RequestDetails](s.T(), rr)
		s.Equal(1, details.Report.TotalCompatible)
	})

	s.Run("requestor dashboard lists the request", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/requestors/"+requestor.ID))
		testutil.AssertStatusOK(s.T(), rr)
		dash := testutil.UnmarshalResponse[service.RequestorDashboard](s.T(), rr)
		s.Equal(1, dash.Requestor.TotalRequests)
		s.Len(dash.Requests, 1)
	})

	s.Run("negative fulfillment is rejected", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/requests/"+id+"/fulfill", map[string]any{"units_fulfilled": -1}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("fulfill then repeat conflicts", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/requests/"+id+"/fulfill", map[string]any{"units_fulfilled": 2}))
		testutil.AssertStatusOK(s.T(), rr)
		res := testutil.UnmarshalResponse[fulfillment.Result](s.T(), rr)
		s.Equal(models.RequestStatusFulfilled, res.Request.Status)
		s.Equal(0, res.Debited)

		rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/requests/"+id+"/fulfill", map[string]any{"units_fulfilled": 1}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})

	s.Run("list", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/requests"))
		testutil.AssertStatusOK(s.T(), rr)
		requests := testutil.UnmarshalResponse[[]models.BloodRequest](s.T(), rr)
		s.Len(*requests, 1)
	})
}

func (s *HandlerSuite) TestInventoryEndpoints() {
	s.Run("adjust with an escaped group", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/AB%2B/adjust", map[string]any{
			"units": 25, "direction": "add",
		}))
		testutil.AssertStatusOK(s.T(), rr)
		entry := testutil.UnmarshalResponse[models.InventoryEntry](s.T(), rr)
		s.Equal(models.ABPositive, entry.BloodGroup)
		s.Equal(25, entry.Units)
	})

	s.Run("adjust requires a direction", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/inventory/O-/adjust", map[string]any{"units": 1}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("inventory lists every group", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/inventory"))
		testutil.AssertStatusOK(s.T(), rr)
		entries := testutil.UnmarshalResponse[[]models.InventoryEntry](s.T(), rr)
		s.Len(*entries, len(models.BloodGroups))
	})

	s.Run("statistics", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/statistics"))
		testutil.AssertStatusOK(s.T(), rr)
		stats := testutil.UnmarshalResponse[models.Statistics](s.T(), rr)
		s.Equal(25, stats.TotalUnits)
		s.NotContains(stats.CriticalGroups, models.ABPositive)
	})
}
