// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestContext returns a test context bounded well under the test
// binary's own timeout, for scheduler loops driven in the background.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// EventuallyTrue polls cond until it returns true or the deadline
// passes, failing the test otherwise.
func EventuallyTrue(t *testing.T, cond func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Fail(t, msg)
}
