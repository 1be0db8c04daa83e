package kberr

import (
	"errors"
	"fmt"
	"testing"
)

func Test_KindOf_ClassifiedError(t *testing.T) {
	t.Parallel()

	err := New(KindTimeout, "embedding.Embed", "deadline exceeded after 3 attempts")
	if got := KindOf(err); got != KindTimeout {
		t.Errorf("KindOf: want KindTimeout, got %v", got)
	}
}

func Test_KindOf_WrappedChain(t *testing.T) {
	t.Parallel()

	inner := New(KindRateLimit, "embedding.client", "429 from endpoint")
	outer := fmt.Errorf("search: query embed failed: %w", inner)
	if got := KindOf(outer); got != KindRateLimit {
		t.Errorf("KindOf through chain: want KindRateLimit, got %v", got)
	}
}

func Test_KindOf_PlainError(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("boom")); got != KindUnknown {
		t.Errorf("KindOf plain error: want KindUnknown, got %v", got)
	}
	if got := KindOf(nil); got != KindUnknown {
		t.Errorf("KindOf nil: want KindUnknown, got %v", got)
	}
}

func Test_Retryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind Kind
		want bool
	}{
		{KindConnection, true},
		{KindTimeout, true},
		{KindRateLimit, true},
		{KindAuth, false},
		{KindValidation, false},
		{KindUnknown, false},
	}
	for _, tc := range cases {
		err := New(tc.kind, "op", "msg")
		if got := Retryable(err); got != tc.want {
			t.Errorf("Retryable(%v): want %v, got %v", tc.kind, tc.want, got)
		}
	}
}

func Test_Transient_IncludesAuth(t *testing.T) {
	t.Parallel()

	if !Transient(New(KindAuth, "op", "invalid api key")) {
		t.Error("auth failures must trigger store fallback")
	}
	if Transient(New(KindValidation, "op", "bad input")) {
		t.Error("validation failures must never trigger store fallback")
	}
}

func Test_Error_MessageRendering(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Wrap(KindConnection, "vecstore.qdrant", "health check failed", cause)
	want := "vecstore.qdrant: health check failed: connection refused"
	if err.Error() != want {
		t.Errorf("Error(): want %q, got %q", want, err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause must survive errors.Is")
	}
}
