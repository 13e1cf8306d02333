package sheets

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestWrapClassifiesAuthByStatus(t *testing.T) {
	cases := []struct {
		code int
		want FailureKind
	}{
		{401, KindAuth},
		{403, KindAuth},
		{404, KindTransport},
		{429, KindTransport},
		{500, KindTransport},
	}

	for _, tc := range cases {
		err := wrap("read failed", &googleapi.Error{Code: tc.code})
		if err.Kind != tc.want {
			t.Errorf("status %d: expected kind %s, got %s", tc.code, tc.want, err.Kind)
		}
	}
}

func TestWrapNonAPIError(t *testing.T) {
	err := wrap("read failed", errors.New("connection refused"))
	if err.Kind != KindTransport {
		t.Errorf("expected transport kind, got %s", err.Kind)
	}
}

func TestKindOfUnwrapsChain(t *testing.T) {
	inner := NewFailure(KindConfig, "no spreadsheet configured", nil)
	wrapped := fmt.Errorf("full sync: %w", inner)

	if got := KindOf(wrapped); got != KindConfig {
		t.Errorf("expected config kind, got %s", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("expected internal kind for plain error, got %s", got)
	}
}

func TestFailureErrorString(t *testing.T) {
	f := NewFailure(KindTransport, "failed to read range", errors.New("timeout"))
	want := "transport: failed to read range: timeout"
	if f.Error() != want {
		t.Errorf("expected %q, got %q", want, f.Error())
	}

	if !errors.Is(f, f.Err) {
		t.Error("expected Unwrap to expose the cause")
	}
}
