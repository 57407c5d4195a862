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
	"time"

	"github.com/blinklabs-io/paddock/database/models"
	"github.com/blinklabs-io/paddock/infringement"
)

// ErrorResponse is the error body for all API errors
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// CategoriesResponse is returned by GET /categories
type CategoriesResponse struct {
	Infringements []string `json:"infringements"`
	Penalties     []string `json:"penalties"`
}

// InfringementResponse is the wire shape of an infringement record with its
// derived status attached
type InfringementResponse struct {
	Id                 uint      `json:"id"`
	KartNumber         int       `json:"kart_number"`
	TurnNumber         *int      `json:"turn_number,omitempty"`
	Observer           string    `json:"observer"`
	Description        string    `json:"description"`
	PenaltyDescription string    `json:"penalty_description,omitempty"`
	PenaltyDue         string    `json:"penalty_due"`
	PenaltyTaken       bool      `json:"penalty_taken"`
	WarningCount       int       `json:"warning_count"`
	PerformedBy        string    `json:"performed_by,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	Status             string    `json:"status"`
}

func newInfringementResponse(rec infringement.Record) InfringementResponse {
	return InfringementResponse{
		Id:                 rec.ID,
		KartNumber:         rec.KartNumber,
		TurnNumber:         rec.TurnNumber,
		Observer:           rec.Observer,
		Description:        rec.Description,
		PenaltyDescription: rec.PenaltyDescription,
		PenaltyDue:         rec.PenaltyDue,
		PenaltyTaken:       rec.PenaltyTaken,
		WarningCount:       rec.WarningCount,
		PerformedBy:        rec.PerformedBy,
		Timestamp:          rec.Timestamp,
		Status:             string(rec.Status),
	}
}

func newInfringementResponses(
	recs []infringement.Record,
) []InfringementResponse {
	out := make([]InfringementResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, newInfringementResponse(rec))
	}
	return out
}

// HistoryResponse is the wire shape of one audit trail row
type HistoryResponse struct {
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by,omitempty"`
	Observer    string    `json:"observer,omitempty"`
	Details     string    `json:"details,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func newHistoryResponses(
	rows []models.InfringementHistory,
) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, HistoryResponse{
			Action:      row.Action,
			PerformedBy: row.PerformedBy,
			Observer:    row.Observer,
			Details:     row.Details,
			Timestamp:   row.Timestamp,
		})
	}
	return out
}

// SessionResponse is the wire shape of a session
type SessionResponse struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

func newSessionResponse(info models.SessionInfo) SessionResponse {
	return SessionResponse{
		Name:      info.Name,
		Status:    info.Status,
		StartedAt: info.StartedAt,
	}
}

// CreateInfringementRequest is the body of POST /infringements/
type CreateInfringementRequest struct {
	KartNumber         int    `json:"kart_number"`
	TurnNumber         *int   `json:"turn_number,omitempty"`
	Observer           string `json:"observer"`
	Description        string `json:"description"`
	PenaltyDescription string `json:"penalty_description,omitempty"`
	PenaltyDue         string `json:"penalty_due,omitempty"`
	PenaltyTaken       bool   `json:"penalty_taken,omitempty"`
	WarningCount       int    `json:"warning_count,omitempty"`
	PerformedBy        string `json:"performed_by,omitempty"`
}

// UpdateInfringementRequest is the body of PUT /infringements/{id}; only
// supplied fields change
type UpdateInfringementRequest struct {
	KartNumber         *int    `json:"kart_number,omitempty"`
	TurnNumber         *int    `json:"turn_number,omitempty"`
	Observer           *string `json:"observer,omitempty"`
	Description        *string `json:"description,omitempty"`
	PenaltyDescription *string `json:"penalty_description,omitempty"`
	PenaltyDue         *string `json:"penalty_due,omitempty"`
	PenaltyTaken       *bool   `json:"penalty_taken,omitempty"`
	WarningCount       *int    `json:"warning_count,omitempty"`
	PerformedBy        *string `json:"performed_by,omitempty"`
}

// ApplyPenaltyRequest is the body of POST /infringements/{id}/apply-penalty
type ApplyPenaltyRequest struct {
	PerformedBy string `json:"performed_by"`
}

// SessionRequest is the body of session create/load/close requests
type SessionRequest struct {
	Name string `json:"name"`
}

// SessionStatusResponse is returned by session lifecycle mutations
type SessionStatusResponse struct {
	Status  string           `json:"status"`
	Session *SessionResponse `json:"session,omitempty"`
}

// ExportResponse is the JSON-format session export document
type ExportResponse struct {
	Session       SessionResponse        `json:"session"`
	Infringements []ExportRecordResponse `json:"infringements"`
	ExportedAt    time.Time              `json:"exported_at"`
}

// ExportRecordResponse is one record plus its audit trail in an export
type ExportRecordResponse struct {
	InfringementResponse
	History []HistoryResponse `json:"history"`
}
