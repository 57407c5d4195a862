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

package paddock_test

import (
	"context"
	"testing"
	"time"

	"github.com/blinklabs-io/paddock"
	"github.com/stretchr/testify/require"
)

func TestRunAndShutdown(t *testing.T) {
	p, err := paddock.New(
		paddock.NewConfig(
			paddock.WithListenAddress("127.0.0.1:0"),
		),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run(ctx)
	}()

	// Give the listeners a moment to come up, then shut down
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for shutdown")
	}

	// Stop is idempotent
	require.NoError(t, p.Stop())
}

func TestStopUnblocksRun(t *testing.T) {
	p, err := paddock.New(
		paddock.NewConfig(
			paddock.WithListenAddress("127.0.0.1:0"),
		),
	)
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run(t.Context())
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, p.Stop())
	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for run to return")
	}
}
