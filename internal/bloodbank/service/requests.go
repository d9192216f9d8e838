package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"hemalink/internal/bloodbank/events"
	"hemalink/internal/bloodbank/fulfillment"
	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/store"
	"hemalink/internal/storage"
	dErrors "hemalink/pkg/domain-errors"
	"hemalink/pkg/platform/sentinel"
	"hemalink/pkg/requestcontext"
)

// RequestorDashboard is a requestor with their requests, newest first.
type RequestorDashboard struct {
	Requestor *models.Requestor     `json:"requestor"`
	Requests  []models.BloodRequest `json:"requests"`
}

// RequestDetails pairs a request with a match report computed on read.
type RequestDetails struct {
	Request *models.BloodRequest `json:"request"`
	Report  *models.MatchReport  `json:"match_report"`
}

func (s *Service) RegisterRequestor(ctx context.Context, reg models.RequestorRegistration) (*models.Requestor, error) {
	requestor, err := models.NewRequestor(models.NewRequestorID(), reg, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.records.PutRequestor(ctx, requestor); err != nil {
		return nil, store.WrapErr(err, "requestor")
	}
	s.metrics.IncrementRequestorsRegistered()
	s.logger.InfoContext(ctx, "requestor registered",
		"requestor_id", requestor.ID,
		"organization", requestor.Organization,
	)
	return requestor, nil
}

func (s *Service) RequestorDashboard(ctx context.Context, id string) (*RequestorDashboard, error) {
	requestor, err := s.records.GetRequestor(ctx, id)
	if err != nil {
		return nil, store.WrapErr(err, "requestor")
	}
	all, err := s.ListRequests(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]models.BloodRequest, 0)
	for _, r := range all {
		if r.RequestorID == id {
			mine = append(mine, r)
		}
	}
	return &RequestorDashboard{Requestor: requestor, Requests: mine}, nil
}

// SubmitRequest stores a new pending request together with the ids of its
// top ranked donors. A registered requestor's request counter is bumped in
// the same transaction; an unknown requestor id is kept on the request as is.
func (s *Service) SubmitRequest(ctx context.Context, in models.BloodRequestInput) (*RequestDetails, error) {
	req, err := models.NewBloodRequest(models.NewRequestID(), in, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	report, err := s.engine.MatchReportFor(ctx, req)
	if err != nil {
		return nil, err
	}
	req.MatchedDonors = report.DonorIDs()

	keys := []storage.Key{store.RequestKey(req.ID)}
	if !req.IsGuest() {
		keys = append(keys, store.RequestorKey(req.RequestorID))
	}
	err = s.backend.RunInTx(ctx, func(ctx context.Context, rs storage.RecordStore) error {
		recs := store.New(rs)
		if err := recs.PutRequest(ctx, req); err != nil {
			return err
		}
		if req.IsGuest() {
			return nil
		}
		requestor, err := recs.GetRequestor(ctx, req.RequestorID)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		requestor.TotalRequests++
		return recs.PutRequestor(ctx, requestor)
	}, keys...)
	if err != nil {
		return nil, store.WrapErr(err, "blood request")
	}

	s.metrics.IncrementRequestsSubmitted(string(req.Urgency))
	s.logger.InfoContext(ctx, "blood request submitted",
		"request_id", req.ID,
		"blood_group", req.BloodGroup.String(),
		"units", req.UnitsNeeded,
		"urgency", string(req.Urgency),
		"matched_donors", len(req.MatchedDonors),
		"fulfillable", report.Fulfillable,
	)
	s.notifier.Notify(ctx, events.KindRequestSubmitted, req.ID,
		fmt.Sprintf("%s urgency request for %d unit(s) of %s at %s",
			req.Urgency, req.UnitsNeeded, req.BloodGroup, req.HospitalName))
	return &RequestDetails{Request: req, Report: report}, nil
}

// RequestDetails returns the request and a freshly computed match report.
func (s *Service) RequestDetails(ctx context.Context, id string) (*RequestDetails, error) {
	req, err := s.records.GetRequest(ctx, id)
	if err != nil {
		return nil, store.WrapErr(err, "blood request")
	}
	report, err := s.engine.MatchReportFor(ctx, req)
	if err != nil {
		return nil, err
	}
	return &RequestDetails{Request: req, Report: report}, nil
}

// ListRequests returns every request, newest first.
func (s *Service) ListRequests(ctx context.Context) ([]models.BloodRequest, error) {
	requests, err := s.records.ListRequests(ctx)
	if err != nil {
		return nil, store.WrapErr(err, "blood requests")
	}
	slices.SortStableFunc(requests, func(a, b models.BloodRequest) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return requests, nil
}

// FulfillRequest records units supplied against a request and debits them
// from stock.
func (s *Service) FulfillRequest(ctx context.Context, id string, units int) (*fulfillment.Result, error) {
	result, err := s.engine.RecordFulfillment(ctx, id, units)
	if err != nil {
		return nil, err
	}
	if result.Request.Status == models.RequestStatusFulfilled {
		s.notifier.Notify(ctx, events.KindRequestFulfilled, id,
			fmt.Sprintf("request for %s is fulfilled with %d unit(s)",
				result.Request.BloodGroup, result.Request.FulfilledUnits))
	}
	return result, nil
}

// MatchReport builds a report for an ad-hoc need without storing anything.
func (s *Service) MatchReport(ctx context.Context, bloodGroup string, units int, location string) (*models.MatchReport, error) {
	group, err := models.ParseBloodGroup(bloodGroup)
	if err != nil {
		return nil, err
	}
	if units <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "units needed must be greater than zero")
	}
	return s.engine.BuildMatchReport(ctx, group, units, location)
}
