// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authd", "1.0.0", "json", &buf)

	logger.Info("test message")

	entry := decode(t, &buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "authd", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authd", "1.0.0", "text", &buf)

	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "service=authd")
}

func TestSetup_DefaultFormatIsJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup("authd", "1.0.0", "", &buf).Info("test message")
	decode(t, &buf)
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authd", "1.0.0", "json", &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authd", "1.0.0", "json", &buf)

	ctx := WithRequestID(context.Background(), "req-123")
	logger.With("route", "/api/auth/login").InfoContext(ctx, "request")

	entry := decode(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "/api/auth/login", entry["route"])
	assert.Equal(t, "req-123", RequestID(ctx))
}

func TestHandler_NoContext(t *testing.T) {
	var buf bytes.Buffer
	Setup("authd", "1.0.0", "json", &buf).Info("plain")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
	assert.NotContains(t, entry, "request_id")
	assert.Empty(t, RequestID(context.Background()))
}

func TestHandler_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authd", "1.0.0", "json", &buf)

	logger.Info("login",
		"email", "user@test.com",
		"password", "hunter22",
		"Token", "abc",
		slog.Group("req", slog.String("cookie", "sid=abc")),
	)

	out := buf.String()
	assert.NotContains(t, out, "hunter22")
	assert.NotContains(t, out, "sid=abc")

	entry := decode(t, &buf)
	assert.Equal(t, "user@test.com", entry["email"])
	assert.Equal(t, Redacted, entry["password"])
	assert.Equal(t, Redacted, entry["Token"])
	assert.Equal(t, Redacted, entry["req"].(map[string]any)["cookie"])
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	var buf bytes.Buffer
	logger := SetDefault("authd", "2.0.0", "json", &buf)

	assert.Same(t, logger, slog.Default())

	slog.Info("via default")
	entry := decode(t, &buf)
	assert.Equal(t, "via default", entry["msg"])
	assert.Equal(t, "authd", entry["service"])
}
