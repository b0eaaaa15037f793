// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/pkg/errutil"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("USER_CREATE_FAILED").
		With("email", "a@x.com").
		Errorf("insert failed")

	errutil.LogError(logger, "create user", err)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "create user", entry["msg"])
	assert.Equal(t, "USER_CREATE_FAILED", entry["code"])
	assert.Equal(t, map[string]any{"email": "a@x.com"}, entry["context"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogError(logger, "operation failed", errors.New("standard error"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "standard error")
	assert.NotContains(t, entry, "code")
}

type ctxKey struct{}

type ctxHandler struct{ slog.Handler }

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		r.AddAttrs(slog.String("request_id", v))
	}
	return h.Handler.Handle(ctx, r)
}

func TestLogErrorContext_PassesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(ctxHandler{slog.NewJSONHandler(&buf, nil)})
	ctx := context.WithValue(context.Background(), ctxKey{}, "01HREQ")

	errutil.LogErrorContext(ctx, logger, "request failed", oops.Code("X").Errorf("boom"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "01HREQ", entry["request_id"])
	assert.Equal(t, "X", entry["code"])
}

func TestCode(t *testing.T) {
	assert.Equal(t, "", errutil.Code(nil))
	assert.Equal(t, "", errutil.Code(errors.New("plain")))
	assert.Equal(t, "INNER", errutil.Code(oops.Code("INNER").Errorf("inner")))

	wrapped := fmt.Errorf("outer: %w", oops.Code("INNER").Errorf("inner"))
	assert.Equal(t, "INNER", errutil.Code(wrapped))
}
