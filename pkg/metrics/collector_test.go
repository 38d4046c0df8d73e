// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResourceCollector(t *testing.T) {
	Enable()
	Goroutines.Set(0)
	MemoryAllocBytes.Set(0)

	rc := NewResourceCollector(context.Background(), time.Hour)
	rc.collect()
	defer rc.Stop()

	if value := testutil.ToFloat64(Goroutines); value <= 0 {
		t.Errorf("Expected positive goroutine count, got %f", value)
	}
	if value := testutil.ToFloat64(MemoryAllocBytes); value <= 0 {
		t.Errorf("Expected positive allocated bytes, got %f", value)
	}
}

func TestResourceCollector_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := StartResourceCollector(ctx, time.Millisecond)

	cancel()

	// Start() must observe the cancelled context and return.
	done := make(chan struct{})
	go func() {
		rc.Start()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop after context cancellation")
	}
}
