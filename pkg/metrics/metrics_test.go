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
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsEnabled(t *testing.T) {
	// Metrics should be enabled by default
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled by default")
	}

	Disable()
	if IsEnabled() {
		t.Error("Expected metrics to be disabled after Disable()")
	}

	Enable()
	if !IsEnabled() {
		t.Error("Expected metrics to be enabled after Enable()")
	}
}

func TestRecordCeremony(t *testing.T) {
	Enable()

	CeremoniesTotal.Reset()
	CeremonyDuration.Reset()

	RecordCeremony(CeremonyRegistration, PhaseSubmit, StatusSuccess, 0.05)

	if count := testutil.CollectAndCount(CeremoniesTotal); count != 1 {
		t.Errorf("Expected 1 ceremony recorded, got %d", count)
	}
	if count := testutil.CollectAndCount(CeremonyDuration); count != 1 {
		t.Errorf("Expected 1 histogram sample, got %d", count)
	}

	RecordCeremony(CeremonyAuthentication, PhaseOptions, StatusError, 0.01)

	if count := testutil.CollectAndCount(CeremoniesTotal); count != 2 {
		t.Errorf("Expected 2 ceremonies recorded, got %d", count)
	}
}

func TestRecordCeremonyWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	CeremoniesTotal.Reset()

	RecordCeremony(CeremonyRegistration, PhaseSubmit, StatusSuccess, 0.05)

	if count := testutil.CollectAndCount(CeremoniesTotal); count != 0 {
		t.Errorf("Expected 0 ceremonies when disabled, got %d", count)
	}
}

func TestRecordError(t *testing.T) {
	Enable()
	ErrorsTotal.Reset()

	RecordError(CeremonyRegistration, "challenge_expired")
	RecordError(CeremonyRegistration, "challenge_expired")
	RecordError(CeremonyAuthentication, "identity_mismatch")

	if count := testutil.CollectAndCount(ErrorsTotal); count != 2 {
		t.Errorf("Expected 2 error series, got %d", count)
	}

	value := testutil.ToFloat64(ErrorsTotal.WithLabelValues(CeremonyRegistration, "challenge_expired"))
	if value != 2 {
		t.Errorf("Expected 2 challenge_expired errors, got %f", value)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	Enable()
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "200", 0.02)
	RecordHTTPRequest("POST", "400", 0.01)

	if count := testutil.CollectAndCount(HTTPRequestsTotal); count != 2 {
		t.Errorf("Expected 2 request series, got %d", count)
	}
	if count := testutil.CollectAndCount(HTTPRequestDuration); count != 1 {
		t.Errorf("Expected 1 duration series, got %d", count)
	}
}

func TestSessionGauge(t *testing.T) {
	Enable()
	SessionsActive.Set(0)

	SessionMinted()
	SessionMinted()
	SessionEnded()

	if value := testutil.ToFloat64(SessionsActive); value != 1 {
		t.Errorf("Expected 1 active session, got %f", value)
	}
}

func TestActiveConnections(t *testing.T) {
	Enable()
	ActiveConnections.Reset()

	IncrementActiveConnections(ProtocolHTTP)
	IncrementActiveConnections(ProtocolHTTP)
	DecrementActiveConnections(ProtocolHTTP)

	value := testutil.ToFloat64(ActiveConnections.WithLabelValues(ProtocolHTTP))
	if value != 1 {
		t.Errorf("Expected 1 active connection, got %f", value)
	}
}
