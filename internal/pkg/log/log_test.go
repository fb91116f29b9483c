package log

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(color.Output)
		SetDebug(false)
	})
	return &buf
}

func TestInfoWithContext_IncludesRequestID(t *testing.T) {
	buf := capture(t)

	ctx := WithRequestID(context.Background(), "req-42")
	InfoWithContext(ctx, "vote applied on %s", "idea-1")

	assert.Contains(t, buf.String(), "[req_id=req-42]")
	assert.Contains(t, buf.String(), "vote applied on idea-1")
}

func TestWarnWithoutRequestID(t *testing.T) {
	buf := capture(t)

	WarnWithContext(context.Background(), "rolled back")
	assert.Contains(t, buf.String(), "[WARN] rolled back")
	assert.NotContains(t, buf.String(), "req_id")
}

func TestDebug_Gated(t *testing.T) {
	buf := capture(t)

	Debug("hidden")
	DebugStruct("snapshot", map[string]int{"a": 1})
	assert.Empty(t, buf.String())

	SetDebug(true)
	Debug("shown %d", 1)
	DebugStruct("snapshot", map[string]int{"a": 1})
	assert.Contains(t, buf.String(), "shown 1")
	assert.Contains(t, buf.String(), "snapshot")
	assert.Contains(t, buf.String(), `"a": (int) 1`)
}

func TestRequestID_Missing(t *testing.T) {
	assert.Equal(t, "", RequestID(context.Background()))
}
