package bloodbank

import (
	"log/slog"

	"hemalink/internal/bloodbank/handler"
	"hemalink/internal/bloodbank/service"
	"hemalink/internal/storage"
)

// Service exposes donor, request and inventory orchestration.
type Service = service.Service

// Handler wires HTTP endpoints to the blood bank service.
type Handler = handler.Handler

// NewService constructs the blood bank service over the selected backend.
func NewService(backend storage.Backend, opts ...service.Option) *Service {
	return service.New(backend, opts...)
}

// NewHandler constructs the JSON handlers for the public routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
