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

package infringement_test

import (
	"testing"
	"time"

	"github.com/blinklabs-io/paddock/database/models"
	"github.com/blinklabs-io/paddock/infringement"
)

func TestDeriveStatus(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	expiry := infringement.DefaultWarningExpiry
	testDefs := []struct {
		name     string
		record   models.Infringement
		expected infringement.Status
	}{
		{
			name: "warning within expiry window",
			record: models.Infringement{
				PenaltyDescription: "Warning",
				PenaltyDue:         "Yes",
				Timestamp:          now.Add(-10 * time.Minute),
			},
			expected: infringement.StatusWarning,
		},
		{
			name: "warning past expiry window",
			record: models.Infringement{
				PenaltyDescription: "Warning",
				PenaltyDue:         "Yes",
				Timestamp:          now.Add(-200 * time.Minute),
			},
			expected: infringement.StatusExpired,
		},
		{
			name: "warning exactly at expiry boundary is still current",
			record: models.Infringement{
				PenaltyDescription: "Warning",
				Timestamp:          now.Add(-expiry),
			},
			expected: infringement.StatusWarning,
		},
		{
			name: "warning category wins even when taken",
			record: models.Infringement{
				PenaltyDescription: "Warning",
				PenaltyDue:         "No",
				PenaltyTaken:       true,
				Timestamp:          now.Add(-5 * time.Minute),
			},
			expected: infringement.StatusWarning,
		},
		{
			name: "penalty taken and no longer due",
			record: models.Infringement{
				PenaltyDescription: "5 Second Penalty",
				PenaltyDue:         "No",
				PenaltyTaken:       true,
				Timestamp:          now.Add(-5 * time.Minute),
			},
			expected: infringement.StatusApplied,
		},
		{
			name: "penalty still due",
			record: models.Infringement{
				PenaltyDescription: "5 Second Penalty",
				PenaltyDue:         "Yes",
				Timestamp:          now.Add(-5 * time.Minute),
			},
			expected: infringement.StatusPending,
		},
		{
			name: "not due and never taken derives cleared, not applied",
			record: models.Infringement{
				PenaltyDescription: "5 Second Penalty",
				PenaltyDue:         "No",
				PenaltyTaken:       false,
				Timestamp:          now.Add(-5 * time.Minute),
			},
			expected: infringement.StatusCleared,
		},
		{
			name: "no penalty at all derives pending while due",
			record: models.Infringement{
				PenaltyDue: "Yes",
				Timestamp:  now,
			},
			expected: infringement.StatusPending,
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			status := infringement.DeriveStatus(testDef.record, now, expiry)
			if status != testDef.expected {
				t.Fatalf(
					"did not get expected status: got %s, wanted %s",
					status,
					testDef.expected,
				)
			}
		})
	}
}

func TestCategoriesNonEmpty(t *testing.T) {
	if len(infringement.Categories()) == 0 {
		t.Fatal("expected infringement categories")
	}
	penalties := infringement.PenaltyCategories()
	if len(penalties) == 0 {
		t.Fatal("expected penalty categories")
	}
	found := false
	for _, penalty := range penalties {
		if penalty == infringement.PenaltyWarning {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf(
			"penalty categories should include %q",
			infringement.PenaltyWarning,
		)
	}
}
