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

// Package correlation ties the log records and metrics of one treasury
// run together. A ceremony that runs split, seal and inspect back to back
// can pass the same id to each run through TREASURY_RUN_ID.
package correlation

import (
	"context"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-treasury/pkg/logging"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// RunIDKey is the context key for storing run IDs
	RunIDKey contextKey = "run-id"

	// RunIDEnv names the environment variable an operator or orchestrator
	// sets to reuse a run ID across invocations.
	RunIDEnv = "TREASURY_RUN_ID"

	// LogKey is the attribute name run IDs are logged under.
	LogKey = "run_id"
)

// WithRunID adds a run ID to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, RunIDKey, id)
}

// RunID retrieves the run ID from context.
// Returns an empty string if no run ID is found.
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// NewID generates a new UUID v4 run ID.
func NewID() string {
	return uuid.New().String()
}

// GetOrGenerate returns the run ID already in ctx, then the one in
// TREASURY_RUN_ID, and otherwise a new one.
func GetOrGenerate(ctx context.Context) string {
	if id := RunID(ctx); id != "" {
		return id
	}
	if id := strings.TrimSpace(os.Getenv(RunIDEnv)); id != "" {
		return id
	}
	return NewID()
}

// Start makes sure ctx carries a run ID and returns a logger that adds it
// to every record.
func Start(ctx context.Context, logger *logging.Logger) (context.Context, *logging.Logger) {
	id := GetOrGenerate(ctx)
	ctx = WithRunID(ctx, id)
	if logger == nil {
		logger = logging.Discard()
	}
	return ctx, logger.With(LogKey, id)
}
