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

import "slices"

// PenaltyWarning is the penalty category whose displayed status depends on
// elapsed time rather than on whether the penalty was taken
const PenaltyWarning = "Warning"

// ValidCategory reports whether a description is one of the fixed
// infringement categories
func ValidCategory(description string) bool {
	return slices.Contains(Categories(), description)
}

// Categories returns the fixed set of infringement categories. Clients
// render their dropdowns from this list so there is one source of truth.
func Categories() []string {
	return []string{
		"Track Limits / White Line Infringement",
		"Pit Time Infringement",
		"Yellow Zone Infringement",
		"Dangerous Driving",
		"Blocking",
		"Collision",
		"Unsafe Re-entry",
		"Ignoring Flags",
		"Pit Lane Speed",
		"Other",
	}
}

// PenaltyCategories returns the fixed set of penalty categories
func PenaltyCategories() []string {
	return []string{
		PenaltyWarning,
		"5 Sec",
		"10 Sec",
		"Fastest Lap Invalidation",
		"Stop and Go",
		"Drive Through",
		"Time Penalty",
		"Disqualification",
	}
}
