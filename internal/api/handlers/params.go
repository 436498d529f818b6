// Package handlers contains the HTTP handlers of the back-office API.
//
// Handlers decode and validate requests, call the domain services and render
// results through the core response helpers. Business rules live in the
// services; handlers only translate between HTTP and Go values.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"backoffice/internal/types"
)

// maxIDsPerRequest bounds comma-separated id lists in paths.
const maxIDsPerRequest = 100

// pathID parses a single positive id from the named URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewAppError(
			types.ErrCodeValidationInvalidField,
			name+" must be a positive integer",
			nil,
		)
	}
	return id, nil
}

// pathIDs parses a comma-separated list of positive ids ("1,2,3") from the
// named URL parameter.
func pathIDs(r *http.Request, name string) ([]int64, error) {
	parts := strings.Split(chi.URLParam(r, name), ",")
	if len(parts) > maxIDsPerRequest {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidField,
			"too many ids in one request",
			nil,
		)
	}

	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil || id <= 0 {
			return nil, types.NewAppError(
				types.ErrCodeValidationInvalidField,
				name+" must be a comma-separated list of positive integers",
				nil,
			)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parsePageQuery reads page, size and repeated sort parameters.
func parsePageQuery(r *http.Request) (types.PageQuery, error) {
	q := r.URL.Query()
	var p types.PageQuery

	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return p, invalidQuery("page must be a positive integer")
		}
		p.Page = n
	}
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > types.MaxPageSize {
			return p, invalidQuery("size must be between 1 and " + strconv.Itoa(types.MaxPageSize))
		}
		p.Size = n
	}
	p.Sort = q["sort"]

	p = p.Normalize()
	if !p.InRange() {
		return p, invalidQuery("page is too large for size " + strconv.Itoa(p.Size))
	}
	return p, nil
}

func invalidQuery(msg string) error {
	return types.NewAppError(types.ErrCodeValidationInvalidQuery, msg, nil)
}

// requireActor returns the authenticated caller or an auth error.
func requireActor(r *http.Request) (types.Actor, error) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		return types.Actor{}, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"authentication is required",
			nil,
		)
	}
	return actor, nil
}
