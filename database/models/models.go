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

package models

import "time"

// SessionInfo lives in the control store and tracks every known session.
// At most one row has status "active" at any time; the session registry
// enforces the invariant inside a single transaction.
type SessionInfo struct {
	ID        uint   `gorm:"primarykey"`
	Name      string `gorm:"uniqueIndex"`
	Status    string `gorm:"index"`
	StartedAt time.Time
}

func (SessionInfo) TableName() string {
	return "session_info"
}

// Session status values
const (
	SessionStatusActive = "active"
	SessionStatusClosed = "closed"
)

// Infringement is a logged rule violation tied to a kart. Each session owns
// an isolated store of these records; they are never re-parented.
type Infringement struct {
	ID                 uint `gorm:"primarykey"`
	KartNumber         int  `gorm:"index"`
	TurnNumber         *int
	Observer           string
	Description        string
	PenaltyDescription string
	PenaltyDue         string `gorm:"default:Yes"`
	PenaltyTaken       bool
	WarningCount       int
	PerformedBy        string
	Timestamp          time.Time `gorm:"index"`
}

func (Infringement) TableName() string {
	return "infringement"
}

// InfringementHistory is an append-only audit trail of mutations against an
// infringement record. History rows survive deletion of the record itself.
type InfringementHistory struct {
	ID             uint `gorm:"primarykey"`
	InfringementId uint `gorm:"index"`
	Action         string
	PerformedBy    string
	Observer       string
	Details        string
	Timestamp      time.Time
}

func (InfringementHistory) TableName() string {
	return "infringement_history"
}

// History action values
const (
	HistoryActionCreated        = "created"
	HistoryActionUpdated        = "updated"
	HistoryActionDeleted        = "deleted"
	HistoryActionPenaltyApplied = "penalty_applied"
)

// ControlModels are migrated into the control store on open
var ControlModels = []any{
	&SessionInfo{},
}

// SessionModels are migrated into each per-session store on creation
var SessionModels = []any{
	&Infringement{},
	&InfringementHistory{},
}
