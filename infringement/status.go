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
	"time"

	"github.com/blinklabs-io/paddock/database/models"
)

// Status is the display status derived from an infringement record. It is
// never stored; every consumer derives it through DeriveStatus so the result
// is identical wherever it is shown.
type Status string

const (
	StatusApplied = Status("Applied")
	StatusExpired = Status("Expired")
	StatusWarning = Status("Warning")
	StatusPending = Status("Pending")
	StatusCleared = Status("Cleared")
)

// PenaltyDue values stored on the record
const (
	PenaltyDueYes = "Yes"
	PenaltyDueNo  = "No"
)

// DefaultWarningExpiry is how long a Warning penalty stays current before
// its displayed status flips to Expired
const DefaultWarningExpiry = 180 * time.Minute

// DeriveStatus computes the display status for a record. The derivation is
// pure and total: exactly one status is produced for any combination of
// record fields, current time and configured warning expiry.
//
// A record whose penalty is not due and was never taken derives Cleared,
// not Applied; Applied always means a penalty action was actually executed.
func DeriveStatus(
	rec models.Infringement,
	now time.Time,
	warningExpiry time.Duration,
) Status {
	if rec.PenaltyDescription == PenaltyWarning {
		if now.Sub(rec.Timestamp) > warningExpiry {
			return StatusExpired
		}
		return StatusWarning
	}
	if rec.PenaltyDue == PenaltyDueNo && rec.PenaltyTaken {
		return StatusApplied
	}
	if rec.PenaltyDue == PenaltyDueYes {
		return StatusPending
	}
	return StatusCleared
}
