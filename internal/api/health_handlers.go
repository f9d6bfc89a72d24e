package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status",
		Tags:        []string{"Health"},
	}, s.handleHealth)
}

// HealthResponse contains server health status.
type HealthResponse struct {
	Status  string `json:"status" doc:"Health status"`
	Version string `json:"version" doc:"API version"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	// A failing meta read means the store is down, which is the one thing
	// worth reporting here.
	if _, err := s.store.GetMeta(ctx); err != nil {
		return nil, huma.Error503ServiceUnavailable("storage backend unavailable")
	}

	return &HealthOutput{Body: HealthResponse{Status: "healthy", Version: apiVersion}}, nil
}
