// Package handler exposes the blood bank service as JSON over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"hemalink/internal/bloodbank/fulfillment"
	"hemalink/internal/bloodbank/models"
	"hemalink/internal/bloodbank/service"
	dErrors "hemalink/pkg/domain-errors"
	"hemalink/pkg/platform/httputil"
	"hemalink/pkg/requestcontext"
)

// Service is the subset of the blood bank service the handlers call.
type Service interface {
	RegisterDonor(ctx context.Context, reg models.DonorRegistration) (*models.Donor, error)
	ListDonors(ctx context.Context) ([]models.Donor, error)
	SearchDonors(ctx context.Context, bloodGroup, location string) ([]models.Donor, error)
	DonorDashboard(ctx context.Context, id string) (*service.DonorDashboard, error)
	UpdateDonor(ctx context.Context, id string, u models.DonorUpdate) (*models.Donor, error)
	DeactivateDonor(ctx context.Context, id string) (*models.Donor, error)
	ReactivateDonor(ctx context.Context, id string) (*models.Donor, error)
	RecordDonation(ctx context.Context, donorID string, in models.DonationInput) (*service.DonationResult, error)
	RegisterRequestor(ctx context.Context, reg models.RequestorRegistration) (*models.Requestor, error)
	RequestorDashboard(ctx context.Context, id string) (*service.RequestorDashboard, error)
	SubmitRequest(ctx context.Context, in models.BloodRequestInput) (*service.RequestDetails, error)
	ListRequests(ctx context.Context) ([]models.BloodRequest, error)
	RequestDetails(ctx context.Context, id string) (*service.RequestDetails, error)
	FulfillRequest(ctx context.Context, id string, units int) (*fulfillment.Result, error)
	Inventory(ctx context.Context) ([]models.InventoryEntry, error)
	AdjustInventory(ctx context.Context, bloodGroup string, units int, direction string) (*models.InventoryEntry, error)
	Statistics(ctx context.Context) (*models.Statistics, error)
}

// Handler wires blood bank endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the blood bank endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/donors", func(r chi.Router) {
		r.Post("/", h.HandleRegisterDonor)
		r.Get("/", h.HandleListDonors)
		r.Get("/search", h.HandleSearchDonors)
		r.Get("/{id}", h.HandleDonorDashboard)
		r.Patch("/{id}", h.HandleUpdateDonor)
		r.Post("/{id}/deactivate", h.HandleDeactivateDonor)
		r.Post("/{id}/reactivate", h.HandleReactivateDonor)
		r.Post("/{id}/donations", h.HandleRecordDonation)
	})
	r.Post("/requestors", h.HandleRegisterRequestor)
	r.Get("/requestors/{id}", h.HandleRequestorDashboard)
	r.Route("/requests", func(r chi.Router) {
		r.Post("/", h.HandleSubmitRequest)
		r.Get("/", h.HandleListRequests)
		r.Get("/{id}", h.HandleRequestDetails)
		r.Post("/{id}/fulfill", h.HandleFulfillRequest)
	})
	r.Get("/inventory", h.HandleInventory)
	r.Post("/inventory/{group}/adjust", h.HandleAdjustInventory)
	r.Get("/statistics", h.HandleStatistics)
}

func (h *Handler) HandleRegisterDonor(w http.ResponseWriter, r *http.Request) {
	reg, err := httputil.DecodeJSON[models.DonorRegistration](r)
	if err != nil {
		h.fail(w, r, "decode donor registration", err)
		return
	}
	donor, err := h.service.RegisterDonor(r.Context(), *reg)
	if err != nil {
		h.fail(w, r, "register donor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, donor)
}

func (h *Handler) HandleListDonors(w http.ResponseWriter, r *http.Request) {
	donors, err := h.service.ListDonors(r.Context())
	if err != nil {
		h.fail(w, r, "list donors", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donors)
}

// HandleSearchDonors handles GET /donors/search?blood_group=&location=.
func (h *Handler) HandleSearchDonors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	donors, err := h.service.SearchDonors(r.Context(), q.Get("blood_group"), q.Get("location"))
	if err != nil {
		h.fail(w, r, "search donors", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donors)
}

func (h *Handler) HandleDonorDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.DonorDashboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "donor dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dash)
}

func (h *Handler) HandleUpdateDonor(w http.ResponseWriter, r *http.Request) {
	update, err := httputil.DecodeJSON[models.DonorUpdate](r)
	if err != nil {
		h.fail(w, r, "decode donor update", err)
		return
	}
	donor, err := h.service.UpdateDonor(r.Context(), chi.URLParam(r, "id"), *update)
	if err != nil {
		h.fail(w, r, "update donor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donor)
}

func (h *Handler) HandleDeactivateDonor(w http.ResponseWriter, r *http.Request) {
	donor, err := h.service.DeactivateDonor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "deactivate donor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donor)
}

func (h *Handler) HandleReactivateDonor(w http.ResponseWriter, r *http.Request) {
	donor, err := h.service.ReactivateDonor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "reactivate donor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, donor)
}

// HandleRecordDonation accepts an empty body for a single unit at the
// default center.
func (h *Handler) HandleRecordDonation(w http.ResponseWriter, r *http.Request) {
	in := &models.DonationInput{}
	if r.ContentLength != 0 {
		decoded, err := httputil.DecodeJSON[models.DonationInput](r)
		if err != nil {
			h.fail(w, r, "decode donation", err)
			return
		}
		in = decoded
	}
	res, err := h.service.RecordDonation(r.Context(), chi.URLParam(r, "id"), *in)
	if err != nil {
		h.fail(w, r, "record donation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) HandleRegisterRequestor(w http.ResponseWriter, r *http.Request) {
	reg, err := httputil.DecodeJSON[models.RequestorRegistration](r)
	if err != nil {
		h.fail(w, r, "decode requestor registration", err)
		return
	}
	requestor, err := h.service.RegisterRequestor(r.Context(), *reg)
	if err != nil {
		h.fail(w, r, "register requestor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, requestor)
}

func (h *Handler) HandleRequestorDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.RequestorDashboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "requestor dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dash)
}

func (h *Handler) HandleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	in, err := httputil.DecodeJSON[models.BloodRequestInput](r)
	if err != nil {
		h.fail(w, r, "decode blood request", err)
		return
	}
	details, err := h.service.SubmitRequest(r.Context(), *in)
	if err != nil {
		h.fail(w, r, "submit blood request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, details)
}

func (h *Handler) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListRequests(r.Context())
	if err != nil {
		h.fail(w, r, "list blood requests", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requests)
}

func (h *Handler) HandleRequestDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.RequestDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "blood request details", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, details)
}

func (h *Handler) HandleFulfillRequest(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.DecodeJSON[FulfillRequest](r)
	if err == nil {
		err = body.Validate()
	}
	if err != nil {
		h.fail(w, r, "decode fulfillment", err)
		return
	}
	res, err := h.service.FulfillRequest(r.Context(), chi.URLParam(r, "id"), body.UnitsFulfilled)
	if err != nil {
		h.fail(w, r, "fulfill blood request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleInventory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Inventory(r.Context())
	if err != nil {
		h.fail(w, r, "list inventory", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entries)
}

// HandleAdjustInventory expects the group path segment escaped ("A%2B").
func (h *Handler) HandleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	group, err := url.PathUnescape(chi.URLParam(r, "group"))
	if err != nil {
		h.fail(w, r, "decode blood group", dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid blood group in path"))
		return
	}
	body, err := httputil.DecodeJSON[AdjustInventoryRequest](r)
	if err == nil {
		err = body.Validate()
	}
	if err != nil {
		h.fail(w, r, "decode inventory adjustment", err)
		return
	}
	entry, err := h.service.AdjustInventory(r.Context(), group, body.Units, body.Direction)
	if err != nil {
		h.fail(w, r, "adjust inventory", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.fail(w, r, "statistics", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
		"code", string(code),
		"error", err,
	}
	if status := dErrors.ToHTTPStatus(code); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, op+" failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, op+" failed", append(attrs, "status", status)...)
	}
	httputil.WriteError(w, err)
}
