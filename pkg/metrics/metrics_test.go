// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-treasury.
//
// go-treasury is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

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

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpSplit, StatusSuccess, 0.002)
	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpSplit, StatusSuccess)); got != 1 {
		t.Errorf("Expected 1 split recorded, got %v", got)
	}
	if count := testutil.CollectAndCount(OperationDuration); count != 1 {
		t.Errorf("Expected 1 histogram series, got %d", count)
	}

	ObserveSince(OpRecover, time.Now(), errors.New("boom"))
	if got := testutil.ToFloat64(OperationsTotal.WithLabelValues(OpRecover, StatusError)); got != 1 {
		t.Errorf("Expected 1 failed recovery, got %v", got)
	}
	if count := testutil.CollectAndCount(OperationsTotal); count != 2 {
		t.Errorf("Expected 2 series, got %d", count)
	}
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	OperationsTotal.Reset()
	ErrorsTotal.Reset()
	RecoveryStateTransitions.Reset()

	RecordOperation(OpSeal, StatusSuccess, 0.1)
	RecordError(OpSeal, "authentication_failed")
	RecordStateTransition("done")

	if count := testutil.CollectAndCount(OperationsTotal); count != 0 {
		t.Errorf("Expected no operations when disabled, got %d", count)
	}
	if count := testutil.CollectAndCount(ErrorsTotal); count != 0 {
		t.Errorf("Expected no errors when disabled, got %d", count)
	}
	if count := testutil.CollectAndCount(RecoveryStateTransitions); count != 0 {
		t.Errorf("Expected no transitions when disabled, got %d", count)
	}
}

func TestRecordError(t *testing.T) {
	Enable()
	ErrorsTotal.Reset()

	RecordError(OpRecover, "scheme_mismatch")
	RecordError(OpRecover, "scheme_mismatch")
	RecordError(OpUnseal, "authentication_failed")

	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpRecover, "scheme_mismatch")); got != 2 {
		t.Errorf("Expected 2 scheme mismatches, got %v", got)
	}
}

func TestRecordStateTransition(t *testing.T) {
	Enable()
	RecoveryStateTransitions.Reset()

	for _, s := range []string{"collecting", "validating", "reconstructing", "done"} {
		RecordStateTransition(s)
	}
	if count := testutil.CollectAndCount(RecoveryStateTransitions); count != 4 {
		t.Errorf("Expected 4 states, got %d", count)
	}
}

func TestStatus(t *testing.T) {
	if Status(nil) != StatusSuccess {
		t.Error("nil error should be success")
	}
	if Status(errors.New("x")) != StatusError {
		t.Error("non-nil error should be error")
	}
}

func TestWriteTextfile(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	RecordOperation(OpExport, StatusSuccess, 0.01)
	AddSharesExported(5)

	path := filepath.Join(t.TempDir(), "treasury.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`treasury_operations_total{operation="export",status="success"} 1`,
		"treasury_shares_exported_total",
		"treasury_goroutines",
		"treasury_last_run_timestamp_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
	if testutil.ToFloat64(Goroutines) < 1 {
		t.Error("Expected goroutine gauge to be sampled")
	}
}
