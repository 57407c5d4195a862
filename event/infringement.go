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

package event

// Infringement mutation event types. The string values are the wire type
// tags delivered verbatim to WebSocket clients, which re-fetch the affected
// lists on any recognized tag.
const (
	NewInfringementEventType    = EventType("new_infringement")
	UpdateInfringementEventType = EventType("update_infringement")
	DeleteInfringementEventType = EventType("delete_infringement")
	PenaltyAppliedEventType     = EventType("penalty_applied")
)

// InfringementEvent is emitted after an infringement record mutation has
// been committed to the active session store. It intentionally carries only
// identifiers: the notification channel is a trigger, not a data transport.
type InfringementEvent struct {
	// Id is the infringement record identifier
	Id uint `json:"infringement_id"`
	// KartNumber is the kart the record is filed against
	KartNumber int `json:"kart_number"`
	// Session is the owning session name
	Session string `json:"session,omitempty"`
}
