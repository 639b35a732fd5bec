// Package handler is the reference HTTP transport for the wire protocol of
// spec.md §6: each exported route JSON-decodes a request body, runs
// go-playground/validator struct-tag validation, resolves the caller's
// FarmId from context (set by middleware.FarmAuth), and calls exactly one
// events.Dispatcher method, mirroring the teacher's handler package split
// by domain (auctions.go, bids.go, ...).
//
// This package exists purely for local play and integration testing; the
// host game embeds internal/events.Dispatcher directly and never goes
// through HTTP (spec.md §6: "implementations are embedded libraries").
package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
	"github.com/usedplus/core/internal/middleware"
)

// Deps bundles the collaborators every handler needs, mirroring the
// teacher's handler constructors that close over a narrow service
// interface instead of a god object.
type Deps struct {
	Dispatcher *events.Dispatcher
	Logger     *slog.Logger
	Validate   *validator.Validate
}

// connIDFor derives the host connection id the Dispatcher's checkOwnership
// expects from an authenticated FarmId. The reference harness's host
// adapter (cmd/server) binds exactly one connection per farm session under
// this same stringified id, so this always resolves to the caller's own
// farm.
func connIDFor(farmID domain.FarmId) string {
	return strconv.FormatInt(int64(farmID), 10)
}

// decodeAndValidate reads r's JSON body into a T and validates its struct
// tags before any business-rule validation runs in the Dispatcher.
func decodeAndValidate[T any](r *http.Request, validate *validator.Validate) (T, error) {
	var body T
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, fmt.Errorf("decode request body: %w", err)
	}
	if err := validate.Struct(body); err != nil {
		return body, fmt.Errorf("validate request body: %w", err)
	}
	return body, nil
}

// decodeJSONOnly reads r's JSON body into v without struct-tag validation,
// for requests whose only input is a single required identifier.
func decodeJSONOnly(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

// writeResponse maps an events.Response onto the HTTP status line: 200 for
// success, 409 for a business-rule rejection. The Response body itself
// always carries the full success/failure detail spec.md §6 requires.
func writeResponse(w http.ResponseWriter, resp events.Response) {
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

func farmIDFromRequest(r *http.Request) (domain.FarmId, bool) {
	return middleware.GetFarmID(r.Context())
}
