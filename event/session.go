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

// Session lifecycle event types. The string values are the wire type tags
// delivered verbatim to WebSocket clients.
const (
	SessionStartedEventType = EventType("session_started")
	SessionLoadedEventType  = EventType("session_loaded")
	SessionClosedEventType  = EventType("session_closed")
	SessionDeletedEventType = EventType("session_deleted")
)

// SessionEvent is emitted after a session lifecycle change has been
// committed to the control store.
type SessionEvent struct {
	// Name is the session name
	Name string `json:"name"`
	// Status is the session status after the change
	Status string `json:"status,omitempty"`
}

// LifecycleEventTypes returns every event type announced on the live
// channel. The WebSocket bridge registers for each of these.
func LifecycleEventTypes() []EventType {
	return []EventType{
		NewInfringementEventType,
		UpdateInfringementEventType,
		DeleteInfringementEventType,
		PenaltyAppliedEventType,
		SessionStartedEventType,
		SessionLoadedEventType,
		SessionClosedEventType,
		SessionDeletedEventType,
	}
}
