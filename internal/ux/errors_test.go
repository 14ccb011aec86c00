package ux

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

func TestRenderError_Coded(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, errors.NewInvalidCredentialsError(stderrors.New("Invalid email or password")), true)

	out := buf.String()
	if !strings.HasPrefix(out, "Error [AUTH-001]: invalid credentials: Invalid email or password\n") {
		t.Errorf("unexpected headline: %q", out)
	}
	if !strings.Contains(out, "→ Check your email address and password") {
		t.Errorf("missing suggestion: %q", out)
	}
}

func TestRenderError_StatusFallback(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, errors.NewRequestFailedError("", 502), true)

	if !strings.Contains(buf.String(), "request failed with status 502") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderError_Plain(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, stderrors.New("boom"), true)

	if buf.String() != "Error: boom\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderError_Nil(t *testing.T) {
	var buf bytes.Buffer
	RenderError(&buf, nil, true)

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}
