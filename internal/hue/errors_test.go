package hue

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("control light: %w", &Error{Kind: KindTimeout, Op: "PUT lights/1/state", Message: "deadline"})

	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false")
	}
	if errors.Is(err, ErrConnection) {
		t.Error("errors.Is(err, ErrConnection) = true")
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("KindOf() = %v", KindOf(err))
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"with_op", &Error{Kind: KindBridge, Op: "PUT groups/0/action", Message: "busy"}, "BridgeError: PUT groups/0/action: busy"},
		{"without_op", validationErrorf("brightness %d out of range", 300), "ValidationError: brightness 300 out of range"},
		{"wrapped_only", &Error{Kind: KindConnection, Err: errConnRefused}, "ConnectionError: " + errConnRefused.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&Error{Kind: KindConnection}, "ConnectionError"},
		{&Error{Kind: KindValidation}, "ValidationError"},
		{&Error{Kind: KindBridge}, "BridgeError"},
		{&Error{Kind: KindTimeout}, "TimeoutError"},
		{&Error{Kind: KindRateLimit}, "RateLimitError"},
		{errors.New("plain"), "UnexpectedError"},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestBridgeError(t *testing.T) {
	tests := []struct {
		typ       int
		kind      Kind
		retryable bool
	}{
		{1, KindConnection, false},
		{3, KindValidation, false},
		{7, KindBridge, false},
		{201, KindBridge, false},
		{901, KindBridge, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("type_%d", tt.typ), func(t *testing.T) {
			e := bridgeError("PUT lights/1/state", tt.typ, "/lights/1", "desc")
			if e.Kind != tt.kind || e.Retryable != tt.retryable || e.BridgeType != tt.typ {
				t.Errorf("bridgeError(%d) = %+v", tt.typ, e)
			}
		})
	}
}
