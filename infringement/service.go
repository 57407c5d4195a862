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
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package infringement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/paddock/database"
	"github.com/blinklabs-io/paddock/database/models"
	"github.com/blinklabs-io/paddock/event"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the requested infringement id does not exist
// in the active session's store
var ErrNotFound = errors.New("infringement not found")

// ValidationError indicates a missing or malformed required field in a
// mutation payload
type ValidationError struct {
	Field string
}

func (e ValidationError) Error() string {
	return "missing or invalid required field: " + e.Field
}

type ServiceConfig struct {
	Database      *database.Database
	EventBus      *event.EventBus
	Logger        *slog.Logger
	WarningExpiry time.Duration
}

// Service provides CRUD over infringement records, implicitly scoped to the
// currently active session. Every operation fails with
// database.ErrNoActiveSession when no session is active. Each mutation is a
// single store transaction; concurrent conflicting edits race at last write
// wins.
type Service struct {
	db            *database.Database
	eventBus      *event.EventBus
	logger        *slog.Logger
	warningExpiry time.Duration
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	warningExpiry := cfg.WarningExpiry
	if warningExpiry <= 0 {
		warningExpiry = DefaultWarningExpiry
	}
	return &Service{
		db:            cfg.Database,
		eventBus:      cfg.EventBus,
		logger:        logger.With("component", "infringement"),
		warningExpiry: warningExpiry,
	}
}

// WarningExpiry returns the configured warning expiry window
func (s *Service) WarningExpiry() time.Duration {
	return s.warningExpiry
}

// Record is an infringement record together with its derived display status
type Record struct {
	models.Infringement
	Status Status
}

func (s *Service) record(rec models.Infringement) *Record {
	return &Record{
		Infringement: rec,
		Status:       DeriveStatus(rec, time.Now(), s.warningExpiry),
	}
}

// CreatePayload carries the fields accepted when filing a new infringement
type CreatePayload struct {
	KartNumber         int
	TurnNumber         *int
	Observer           string
	Description        string
	PenaltyDescription string
	PenaltyDue         string
	PenaltyTaken       bool
	WarningCount       int
	PerformedBy        string
}

// UpdatePayload carries partial-update fields; only non-nil fields change
type UpdatePayload struct {
	KartNumber         *int
	TurnNumber         *int
	Observer           *string
	Description        *string
	PenaltyDescription *string
	PenaltyDue         *string
	PenaltyTaken       *bool
	WarningCount       *int
	PerformedBy        *string
}

// Create validates and persists a new infringement in the active session's
// store, appends a history row and emits a new_infringement event.
func (s *Service) Create(
	ctx context.Context,
	payload CreatePayload,
) (*Record, error) {
	db, sessionName, err := s.db.Active()
	if err != nil {
		return nil, err
	}
	if payload.KartNumber <= 0 {
		return nil, ValidationError{Field: "kart_number"}
	}
	if strings.TrimSpace(payload.Observer) == "" {
		return nil, ValidationError{Field: "observer"}
	}
	if !ValidCategory(payload.Description) {
		return nil, ValidationError{Field: "description"}
	}
	penaltyDue := payload.PenaltyDue
	if penaltyDue == "" {
		penaltyDue = PenaltyDueYes
	}
	if penaltyDue != PenaltyDueYes && penaltyDue != PenaltyDueNo {
		return nil, ValidationError{Field: "penalty_due"}
	}
	rec := models.Infringement{
		KartNumber:         payload.KartNumber,
		TurnNumber:         payload.TurnNumber,
		Observer:           payload.Observer,
		Description:        payload.Description,
		PenaltyDescription: payload.PenaltyDescription,
		PenaltyDue:         penaltyDue,
		PenaltyTaken:       payload.PenaltyTaken,
		WarningCount:       payload.WarningCount,
		PerformedBy:        payload.PerformedBy,
		Timestamp:          time.Now(),
	}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&rec); result.Error != nil {
			return result.Error
		}
		return s.appendHistory(
			tx,
			rec,
			models.HistoryActionCreated,
			payload.PerformedBy,
			fmt.Sprintf("filed against kart %d", rec.KartNumber),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create infringement: %w", err)
	}
	s.logger.Info(
		"infringement created",
		"id", rec.ID,
		"kart", rec.KartNumber,
		"session", sessionName,
	)
	s.publish(event.NewInfringementEventType, rec, sessionName)
	return s.record(rec), nil
}

// Update applies a partial update to an existing infringement, appends a
// history row and emits an update_infringement event. Fails with ErrNotFound
// if the id is absent from the active session's store.
func (s *Service) Update(
	ctx context.Context,
	id uint,
	payload UpdatePayload,
) (*Record, error) {
	db, sessionName, err := s.db.Active()
	if err != nil {
		return nil, err
	}
	var rec models.Infringement
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.First(&rec, id); result.Error != nil {
			return result.Error
		}
		if payload.KartNumber != nil {
			if *payload.KartNumber <= 0 {
				return ValidationError{Field: "kart_number"}
			}
			rec.KartNumber = *payload.KartNumber
		}
		if payload.TurnNumber != nil {
			rec.TurnNumber = payload.TurnNumber
		}
		if payload.Observer != nil {
			if strings.TrimSpace(*payload.Observer) == "" {
				return ValidationError{Field: "observer"}
			}
			rec.Observer = *payload.Observer
		}
		if payload.Description != nil {
			if !ValidCategory(*payload.Description) {
				return ValidationError{Field: "description"}
			}
			rec.Description = *payload.Description
		}
		if payload.PenaltyDescription != nil {
			rec.PenaltyDescription = *payload.PenaltyDescription
		}
		if payload.PenaltyDue != nil {
			if *payload.PenaltyDue != PenaltyDueYes &&
				*payload.PenaltyDue != PenaltyDueNo {
				return ValidationError{Field: "penalty_due"}
			}
			rec.PenaltyDue = *payload.PenaltyDue
		}
		if payload.PenaltyTaken != nil {
			rec.PenaltyTaken = *payload.PenaltyTaken
		}
		if payload.WarningCount != nil {
			rec.WarningCount = *payload.WarningCount
		}
		if payload.PerformedBy != nil {
			rec.PerformedBy = *payload.PerformedBy
		}
		if result := tx.Save(&rec); result.Error != nil {
			return result.Error
		}
		return s.appendHistory(
			tx,
			rec,
			models.HistoryActionUpdated,
			rec.PerformedBy,
			"record edited",
		)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		var valErr ValidationError
		if errors.As(err, &valErr) {
			return nil, valErr
		}
		return nil, fmt.Errorf("failed to update infringement: %w", err)
	}
	s.logger.Info(
		"infringement updated",
		"id", rec.ID,
		"session", sessionName,
	)
	s.publish(event.UpdateInfringementEventType, rec, sessionName)
	return s.record(rec), nil
}

// Delete irreversibly removes an infringement record. The history trail is
// retained with a final "deleted" row. Emits a delete_infringement event.
func (s *Service) Delete(
	ctx context.Context,
	id uint,
	performedBy string,
) error {
	db, sessionName, err := s.db.Active()
	if err != nil {
		return err
	}
	var rec models.Infringement
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.First(&rec, id); result.Error != nil {
			return result.Error
		}
		if result := tx.Delete(&models.Infringement{}, id); result.Error != nil {
			return result.Error
		}
		return s.appendHistory(
			tx,
			rec,
			models.HistoryActionDeleted,
			performedBy,
			"record deleted",
		)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete infringement: %w", err)
	}
	s.logger.Info(
		"infringement deleted",
		"id", id,
		"session", sessionName,
	)
	s.publish(event.DeleteInfringementEventType, rec, sessionName)
	return nil
}

// ApplyPenalty marks the penalty action as executed: penalty_taken=true,
// penalty_due="No", recording who performed it. The end state is idempotent;
// calling it twice re-emits the penalty_applied event but leaves the same
// record state.
func (s *Service) ApplyPenalty(
	ctx context.Context,
	id uint,
	performedBy string,
) (*Record, error) {
	db, sessionName, err := s.db.Active()
	if err != nil {
		return nil, err
	}
	var rec models.Infringement
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if result := tx.First(&rec, id); result.Error != nil {
			return result.Error
		}
		rec.PenaltyTaken = true
		rec.PenaltyDue = PenaltyDueNo
		rec.PerformedBy = performedBy
		if result := tx.Save(&rec); result.Error != nil {
			return result.Error
		}
		return s.appendHistory(
			tx,
			rec,
			models.HistoryActionPenaltyApplied,
			performedBy,
			fmt.Sprintf("penalty %q applied", rec.PenaltyDescription),
		)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to apply penalty: %w", err)
	}
	s.logger.Info(
		"penalty applied",
		"id", rec.ID,
		"penalty", rec.PenaltyDescription,
		"performed_by", performedBy,
		"session", sessionName,
	)
	s.publish(event.PenaltyAppliedEventType, rec, sessionName)
	return s.record(rec), nil
}

// List returns all records in the active session, most recent first. A
// non-empty kartFilter keeps only exact numeric matches after trimming
// whitespace; non-numeric input matches nothing.
func (s *Service) List(
	ctx context.Context,
	kartFilter string,
) ([]Record, error) {
	db, _, err := s.db.Active()
	if err != nil {
		return nil, err
	}
	var recs []models.Infringement
	result := db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Find(&recs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list infringements: %w", result.Error)
	}
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if kartFilter != "" && !MatchKartFilter(kartFilter, rec.KartNumber) {
			continue
		}
		out = append(out, *s.record(rec))
	}
	return out, nil
}

// ListPending returns the records with an outstanding non-warning penalty,
// most recent first. This is the "to action" view.
func (s *Service) ListPending(ctx context.Context) ([]Record, error) {
	db, _, err := s.db.Active()
	if err != nil {
		return nil, err
	}
	var recs []models.Infringement
	result := db.WithContext(ctx).
		Where("penalty_due = ?", PenaltyDueYes).
		Where("penalty_description != ?", PenaltyWarning).
		Order("timestamp DESC, id DESC").
		Find(&recs)
	if result.Error != nil {
		return nil, fmt.Errorf(
			"failed to list pending penalties: %w",
			result.Error,
		)
	}
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, *s.record(rec))
	}
	return out, nil
}

// History returns the audit trail for a record, most recent first. Works
// for deleted records too, since history rows are retained.
func (s *Service) History(
	ctx context.Context,
	id uint,
) ([]models.InfringementHistory, error) {
	db, _, err := s.db.Active()
	if err != nil {
		return nil, err
	}
	var rows []models.InfringementHistory
	result := db.WithContext(ctx).
		Where("infringement_id = ?", id).
		Order("timestamp DESC, id DESC").
		Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", result.Error)
	}
	return rows, nil
}

// MatchKartFilter reports whether a kart-number filter string matches a kart
// number. The filter is trimmed and must parse as an integer equal to the
// kart number; anything else matches nothing.
func MatchKartFilter(filter string, kartNumber int) bool {
	n, err := strconv.Atoi(strings.TrimSpace(filter))
	if err != nil {
		return false
	}
	return n == kartNumber
}

func (s *Service) appendHistory(
	tx *gorm.DB,
	rec models.Infringement,
	action string,
	performedBy string,
	details string,
) error {
	row := models.InfringementHistory{
		InfringementId: rec.ID,
		Action:         action,
		PerformedBy:    performedBy,
		Observer:       rec.Observer,
		Details:        details,
		Timestamp:      time.Now(),
	}
	if result := tx.Create(&row); result.Error != nil {
		return fmt.Errorf("failed to append history: %w", result.Error)
	}
	return nil
}

func (s *Service) publish(
	eventType event.EventType,
	rec models.Infringement,
	sessionName string,
) {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(
		eventType,
		event.NewEvent(
			eventType,
			event.InfringementEvent{
				Id:         rec.ID,
				KartNumber: rec.KartNumber,
				Session:    sessionName,
			},
		),
	)
}
