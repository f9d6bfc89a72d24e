package api

import (
	"context"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// authenticateRequest validates the bearer token in the Authorization
// header and returns the owner's user ID.
func (s *Server) authenticateRequest(ctx context.Context, authHeader string) (string, error) {
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok || token == "" {
		return "", huma.Error401Unauthorized("Missing or malformed authorization header")
	}

	user, _, err := s.services.Auth.VerifyAccessToken(ctx, token)
	if err != nil {
		return "", huma.Error401Unauthorized("Invalid or expired token")
	}

	return user.ID, nil
}
