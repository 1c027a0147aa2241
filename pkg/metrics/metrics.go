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

// Package metrics provides Prometheus instrumentation for treasury operations.
// The CLI is short lived, so instead of serving /metrics it can write the
// default registry to a node-exporter textfile when a command finishes.
package metrics

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all treasury metrics
	Namespace = "treasury"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelState     = "state"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSplit    = "split"
	OpCombine  = "combine"
	OpRecover  = "recover"
	OpExport   = "export"
	OpEncrypt  = "encrypt"
	OpDecrypt  = "decrypt"
	OpSeal     = "seal"
	OpUnseal   = "unseal"
	OpWrap     = "wrap"
	OpUnwrap   = "unwrap"
	OpMnemonic = "mnemonic"
)

var (
	// OperationsTotal tracks the total number of operations by type and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of treasury operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks the duration of operations in seconds.
	// Passphrase key derivation dominates the upper buckets.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of treasury operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{LabelOperation},
	)

	// ErrorsTotal tracks errors by operation and error type, e.g.
	// "scheme_mismatch" or "authentication_failed".
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation and error type",
		},
		[]string{LabelOperation, LabelErrorType},
	)

	// RecoveryStateTransitions counts entries into each recovery state.
	RecoveryStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "recovery_state_transitions_total",
			Help:      "Total number of recovery session state transitions by target state",
		},
		[]string{LabelState},
	)

	// SharesExported counts share records written by split operations.
	SharesExported = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "shares_exported_total",
			Help:      "Total number of share records exported",
		},
	)

	// Goroutines and the memory gauges are sampled by CollectOnce before
	// the textfile is written.
	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_alloc_bytes",
			Help:      "Current bytes of allocated heap objects",
		},
	)

	MemorySysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "memory_sys_bytes",
			Help:      "Total bytes of memory obtained from the OS",
		},
	)

	// LastRunTimestamp is set by WriteTextfile so stale files can be alerted on.
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last treasury command that wrote metrics",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records an operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	shares, err := secretsharing.Split(secret, 3, 5)
//	metrics.RecordOperation(metrics.OpSplit, metrics.Status(err), time.Since(start).Seconds())
func RecordOperation(operation, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// ObserveSince records an operation that started at start and finished with err.
func ObserveSince(operation string, start time.Time, err error) {
	RecordOperation(operation, Status(err), time.Since(start).Seconds())
}

// Status maps an error to StatusSuccess or StatusError.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordError records an error event with context about where it occurred.
func RecordError(operation, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordStateTransition counts a recovery session entering state.
func RecordStateTransition(state string) {
	if !enabled.Load() {
		return
	}
	RecoveryStateTransitions.WithLabelValues(state).Inc()
}

// AddSharesExported counts n exported share records.
func AddSharesExported(n int) {
	if !enabled.Load() {
		return
	}
	SharesExported.Add(float64(n))
}

// CollectOnce performs a single collection of resource metrics.
func CollectOnce() {
	if !IsEnabled() {
		return
	}

	Goroutines.Set(float64(runtime.NumGoroutine()))

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	MemoryAllocBytes.Set(float64(memStats.Alloc))
	MemorySysBytes.Set(float64(memStats.Sys))
}

// WriteTextfile samples resource gauges and writes the default registry
// to path in the text exposition format. The file is written atomically.
func WriteTextfile(path string) error {
	CollectOnce()
	LastRunTimestamp.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
