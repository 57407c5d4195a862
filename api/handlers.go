// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/infringement"
	"github.com/blinklabs-io/paddock/session"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response.
func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// writeServiceError maps registry/service errors onto the API error
// taxonomy. NoActiveSession is surfaced with a distinct error tag so
// clients can prompt the user to create or load a session.
func (a *Api) writeServiceError(w http.ResponseWriter, err error) {
	var valErr infringement.ValidationError
	switch {
	case errors.As(err, &valErr):
		writeError(w, http.StatusBadRequest, "validation_error", valErr.Error())
	case errors.Is(err, session.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, infringement.ErrNotFound),
		errors.Is(err, session.ErrNotFound),
		errors.Is(err, database.ErrSessionStoreNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, session.ErrSessionExists),
		errors.Is(err, session.ErrActiveSessionExists):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, database.ErrNoActiveSession):
		writeError(
			w,
			http.StatusConflict,
			"no_active_session",
			"no session is active; create or load a session first",
		)
	default:
		a.logger.Error(
			"internal error",
			"error", err,
		)
		writeError(
			w,
			http.StatusInternalServerError,
			"store_error",
			err.Error(),
		)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"validation_error",
			"malformed request body",
		)
		return false
	}
	return true
}

func pathId(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		writeError(
			w,
			http.StatusBadRequest,
			"validation_error",
			"malformed infringement id",
		)
		return 0, false
	}
	return uint(id), true
}

// handleHealth handles GET /health
func (a *Api) handleHealth(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// handleCategories handles GET /categories. Clients build their dropdowns
// from this single source of truth.
func (a *Api) handleCategories(
	w http.ResponseWriter,
	_ *http.Request,
) {
	writeJSON(w, http.StatusOK, CategoriesResponse{
		Infringements: infringement.Categories(),
		Penalties:     infringement.PenaltyCategories(),
	})
}

// handleListInfringements handles GET /infringements/ and returns all
// records in the active session, most recent first. An optional ?kart=
// query keeps exact numeric matches only.
func (a *Api) handleListInfringements(
	w http.ResponseWriter,
	r *http.Request,
) {
	recs, err := a.config.Service.List(
		r.Context(),
		r.URL.Query().Get("kart"),
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInfringementResponses(recs))
}

// handleCreateInfringement handles POST /infringements/
func (a *Api) handleCreateInfringement(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req CreateInfringementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := a.config.Service.Create(
		r.Context(),
		infringement.CreatePayload{
			KartNumber:         req.KartNumber,
			TurnNumber:         req.TurnNumber,
			Observer:           req.Observer,
			Description:        req.Description,
			PenaltyDescription: req.PenaltyDescription,
			PenaltyDue:         req.PenaltyDue,
			PenaltyTaken:       req.PenaltyTaken,
			WarningCount:       req.WarningCount,
			PerformedBy:        req.PerformedBy,
		},
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newInfringementResponse(*rec))
}

// handleListPending handles GET /infringements/pending: the records with an
// outstanding non-warning penalty.
func (a *Api) handleListPending(
	w http.ResponseWriter,
	r *http.Request,
) {
	recs, err := a.config.Service.ListPending(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInfringementResponses(recs))
}

// handleUpdateInfringement handles PUT /infringements/{id} with
// partial-update semantics.
func (a *Api) handleUpdateInfringement(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	var req UpdateInfringementRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := a.config.Service.Update(
		r.Context(),
		id,
		infringement.UpdatePayload{
			KartNumber:         req.KartNumber,
			TurnNumber:         req.TurnNumber,
			Observer:           req.Observer,
			Description:        req.Description,
			PenaltyDescription: req.PenaltyDescription,
			PenaltyDue:         req.PenaltyDue,
			PenaltyTaken:       req.PenaltyTaken,
			WarningCount:       req.WarningCount,
			PerformedBy:        req.PerformedBy,
		},
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInfringementResponse(*rec))
}

// handleDeleteInfringement handles DELETE /infringements/{id}
func (a *Api) handleDeleteInfringement(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	performedBy := r.URL.Query().Get("performed_by")
	if err := a.config.Service.Delete(
		r.Context(),
		id,
		performedBy,
	); err != nil {
		a.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInfringementHistory handles GET /infringements/{id}/history
func (a *Api) handleInfringementHistory(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	rows, err := a.config.Service.History(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newHistoryResponses(rows))
}

// handleApplyPenalty handles POST /infringements/{id}/apply-penalty
func (a *Api) handleApplyPenalty(
	w http.ResponseWriter,
	r *http.Request,
) {
	id, ok := pathId(w, r)
	if !ok {
		return
	}
	var req ApplyPenaltyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := a.config.Service.ApplyPenalty(
		r.Context(),
		id,
		req.PerformedBy,
	)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newInfringementResponse(*rec))
}

// handleListSessions handles GET /sessions/
func (a *Api) handleListSessions(
	w http.ResponseWriter,
	r *http.Request,
) {
	sessions, err := a.config.Registry.List(r.Context())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	out := make([]SessionResponse, 0, len(sessions))
	for _, info := range sessions {
		out = append(out, newSessionResponse(info))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateSession handles POST /sessions/
func (a *Api) handleCreateSession(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req SessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	info, err := a.config.Registry.Create(r.Context(), req.Name)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	resp := newSessionResponse(*info)
	writeJSON(w, http.StatusCreated, SessionStatusResponse{
		Status:  "session started",
		Session: &resp,
	})
}

// handleLoadSession handles POST /sessions/load
func (a *Api) handleLoadSession(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req SessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	info, err := a.config.Registry.Load(r.Context(), req.Name)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	resp := newSessionResponse(*info)
	writeJSON(w, http.StatusOK, SessionStatusResponse{
		Status:  fmt.Sprintf("session %q loaded", req.Name),
		Session: &resp,
	})
}

// handleCloseSession handles POST /sessions/close
func (a *Api) handleCloseSession(
	w http.ResponseWriter,
	r *http.Request,
) {
	var req SessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.config.Registry.Close(r.Context(), req.Name); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionStatusResponse{
		Status: fmt.Sprintf("session %q closed", req.Name),
	})
}

// handleDeleteSession handles DELETE /sessions/{name}
func (a *Api) handleDeleteSession(
	w http.ResponseWriter,
	r *http.Request,
) {
	name := r.PathValue("name")
	if err := a.config.Registry.Delete(r.Context(), name); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionStatusResponse{
		Status: fmt.Sprintf("session %q deleted", name),
	})
}

// handleExportSession handles GET /sessions/export?name=X&format=json|csv
// and returns the session snapshot as a file download.
func (a *Api) handleExportSession(
	w http.ResponseWriter,
	r *http.Request,
) {
	name := r.URL.Query().Get("name")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeError(
			w,
			http.StatusBadRequest,
			"validation_error",
			"format must be 'json' or 'csv'",
		)
		return
	}
	info, err := a.config.Registry.Get(r.Context(), name)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	data, err := a.config.Service.Export(r.Context(), *info)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	filename := fmt.Sprintf(
		"%s_%s.%s",
		database.SafeName(name),
		data.ExportedAt.UTC().Format("20060102_150405"),
		format,
	)
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filename),
	)
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		a.writeExportCsv(w, data)
		return
	}
	records := make([]ExportRecordResponse, 0, len(data.Infringements))
	for _, rec := range data.Infringements {
		records = append(records, ExportRecordResponse{
			InfringementResponse: newInfringementResponse(rec.Record),
			History:              newHistoryResponses(rec.History),
		})
	}
	writeJSON(w, http.StatusOK, ExportResponse{
		Session:       newSessionResponse(data.Session),
		Infringements: records,
		ExportedAt:    data.ExportedAt,
	})
}

func (a *Api) writeExportCsv(
	w http.ResponseWriter,
	data *infringement.ExportData,
) {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	write := func(row ...string) {
		//nolint:errcheck
		cw.Write(row)
	}
	write("Session Information")
	write("Name", data.Session.Name)
	write("Status", data.Session.Status)
	write("Started At", data.Session.StartedAt.Format(time.RFC3339))
	write()
	write("Infringements")
	write(
		"ID", "Kart Number", "Turn Number", "Description", "Observer",
		"Warning Count", "Penalty Due", "Penalty Description",
		"Penalty Taken", "Status", "Timestamp",
	)
	for _, rec := range data.Infringements {
		turn := ""
		if rec.TurnNumber != nil {
			turn = strconv.Itoa(*rec.TurnNumber)
		}
		write(
			strconv.FormatUint(uint64(rec.ID), 10),
			strconv.Itoa(rec.KartNumber),
			turn,
			rec.Description,
			rec.Observer,
			strconv.Itoa(rec.WarningCount),
			rec.PenaltyDue,
			rec.PenaltyDescription,
			strconv.FormatBool(rec.PenaltyTaken),
			string(rec.Status),
			rec.Timestamp.Format(time.RFC3339),
		)
	}
	hasHistory := false
	for _, rec := range data.Infringements {
		if len(rec.History) > 0 {
			hasHistory = true
			break
		}
	}
	if !hasHistory {
		return
	}
	write()
	write("Infringement History")
	write(
		"Infringement ID", "Action", "Performed By", "Observer",
		"Details", "Timestamp",
	)
	for _, rec := range data.Infringements {
		for _, row := range rec.History {
			write(
				strconv.FormatUint(uint64(rec.ID), 10),
				row.Action,
				row.PerformedBy,
				row.Observer,
				row.Details,
				row.Timestamp.Format(time.RFC3339),
			)
		}
	}
}
