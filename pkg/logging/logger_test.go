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

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: "info", Writer: &buf})
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("recovery started", "records", 3)
	l.Warnf("only %d shares", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=\"recovery started\" records=3")
	assert.Contains(t, out, "only 2 shares")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&Config{Level: "debug", Format: "json", Writer: &buf})
	require.NoError(t, err)

	l.With("splitId", "abc").Debug("state", "to", "validating")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "state", rec["msg"])
	assert.Equal(t, "abc", rec["splitId"])
	assert.Equal(t, "validating", rec["to"])
}

func TestNew_Errors(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
	_, err = New(&Config{Format: "xml"})
	assert.Error(t, err)

	l, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error(errors.New("dropped"))
	l.MaybeError(nil)
	assert.False(t, l.Slog().Enabled(context.Background(), slog.LevelError))
}
