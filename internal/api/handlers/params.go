// Package handlers contains the HTTP handlers of the crowdrisk API. Every
// handler depends on a small locally declared service interface so tests can
// substitute fakes.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"crowdrisk/internal/core"
	"crowdrisk/internal/i18n"
	"crowdrisk/internal/types"
)

// Series limits.
const (
	DefaultSeriesLimit = 24
	MaxSeriesLimit     = 500
)

// locationID parses the {id} path parameter.
func locationID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, types.NewAppError(types.ErrCodeValidationInvalidID, "location id must be a positive integer", nil).
			WithDetails(map[string]any{"id": raw})
	}
	return id, nil
}

// evaluationQuery holds the ?lang= and ?refresh= parameters.
type evaluationQuery struct {
	Lang    string `query:"lang" validate:"language_code"`
	Refresh bool   `query:"refresh"`
}

// language returns the normalized language; well-formed but unsupported
// codes fall back to the default.
func (q evaluationQuery) language() string {
	return i18n.Normalize(q.Lang)
}

func parseEvaluationQuery(r *http.Request, v *core.Validator) (evaluationQuery, error) {
	values := r.URL.Query()
	q := evaluationQuery{Lang: values.Get("lang")}

	if raw := values.Get("refresh"); raw != "" {
		refresh, err := strconv.ParseBool(raw)
		if err != nil {
			return q, types.NewAppError(types.ErrCodeValidationInvalidQuery, "refresh must be true or false", nil)
		}
		q.Refresh = refresh
	}
	if err := v.ValidateStruct(q); err != nil {
		return q, err
	}
	return q, nil
}

type seriesQuery struct {
	Limit int `query:"limit" validate:"min=1,max=500"`
}

func parseSeriesQuery(r *http.Request, v *core.Validator) (seriesQuery, error) {
	q := seriesQuery{Limit: DefaultSeriesLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return q, types.NewAppError(types.ErrCodeValidationInvalidLimit, "limit must be an integer", nil)
		}
		q.Limit = limit
	}
	if err := v.ValidateStruct(q); err != nil {
		return q, err
	}
	return q, nil
}
