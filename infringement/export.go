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
	"fmt"
	"time"

	"github.com/blinklabs-io/paddock/database/models"
)

// ExportRecord is an infringement with its full audit trail, as included in
// a session export
type ExportRecord struct {
	Record
	History []models.InfringementHistory
}

// ExportData is a complete snapshot of one session for download or archival
type ExportData struct {
	Session       models.SessionInfo
	Infringements []ExportRecord
	ExportedAt    time.Time
}

// Export snapshots the named session's records and history. The session
// does not need to be active; the caller resolves the session row first.
func (s *Service) Export(
	ctx context.Context,
	info models.SessionInfo,
) (*ExportData, error) {
	db, err := s.db.SessionStore(info.Name)
	if err != nil {
		return nil, err
	}
	var recs []models.Infringement
	result := db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Find(&recs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to export session: %w", result.Error)
	}
	out := &ExportData{
		Session:       info,
		Infringements: make([]ExportRecord, 0, len(recs)),
		ExportedAt:    time.Now(),
	}
	for _, rec := range recs {
		var history []models.InfringementHistory
		result := db.WithContext(ctx).
			Where("infringement_id = ?", rec.ID).
			Order("timestamp DESC, id DESC").
			Find(&history)
		if result.Error != nil {
			return nil, fmt.Errorf(
				"failed to export history: %w",
				result.Error,
			)
		}
		out.Infringements = append(out.Infringements, ExportRecord{
			Record:  *s.record(rec),
			History: history,
		})
	}
	return out, nil
}
