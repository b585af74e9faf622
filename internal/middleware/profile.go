package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"storefront-offers/internal/models"
	"storefront-offers/internal/validation"
)

// ProfileHeader carries the browser profile id.
const ProfileHeader = "X-Profile-ID"

type profileKey struct{}

// WithProfile returns ctx carrying profile.
func WithProfile(ctx context.Context, profile string) context.Context {
	return context.WithValue(ctx, profileKey{}, profile)
}

// ProfileFromContext returns the request's profile id, or "" when the
// client sent none.
func ProfileFromContext(ctx context.Context) string {
	profile, _ := ctx.Value(profileKey{}).(string)
	return profile
}

// ProfileMiddleware reads X-Profile-ID into the request context. A missing
// header passes through; a malformed one is rejected with 400.
func ProfileMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(ProfileHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		if err := validation.ValidateUUID(raw, ProfileHeader); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: err.Error()})
			return
		}

		profile := strings.ToLower(validation.SanitizeString(raw))
		next.ServeHTTP(w, r.WithContext(WithProfile(r.Context(), profile)))
	})
}
