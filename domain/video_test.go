package domain

import (
	"errors"
	"testing"
)

func TestRenderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to RenderStatus
		want     bool
	}{
		{RenderStatusQueued, RenderStatusRendering, true},
		{RenderStatusQueued, RenderStatusError, true},
		{RenderStatusQueued, RenderStatusDone, true},
		{RenderStatusRendering, RenderStatusDone, true},
		{RenderStatusRendering, RenderStatusError, true},
		{RenderStatusRendering, RenderStatusRendering, false},
		{RenderStatusRendering, RenderStatusQueued, false},
		{RenderStatusDone, RenderStatusError, false},
		{RenderStatusDone, RenderStatusRendering, false},
		{RenderStatusError, RenderStatusDone, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestWrapKeepsKindAndCause(t *testing.T) {
	cause := errors.New("http 500: secret-bearing body")
	err := Wrap(ErrUpstream, "submit video", "failed to generate script", cause)

	if !errors.Is(err, ErrUpstream) {
		t.Fatal("expected ErrUpstream in chain")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if got := PublicMessage(err); got != "failed to generate script" {
		t.Fatalf("unexpected public message %q", got)
	}
	if err.Error() != "upstream error: submit video: failed to generate script: http 500: secret-bearing body" {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}

func TestPublicMessageFallsBackToKind(t *testing.T) {
	if got := PublicMessage(Wrap(ErrNotFound, "lookup", "", nil)); got != "not found" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := PublicMessage(errors.New("boom")); got != "internal server error" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestParseRenderJobState(t *testing.T) {
	cases := map[string]RenderJobState{
		"succeeded":    RenderJobSucceeded,
		"Failed":       RenderJobFailed,
		"rendering":    RenderJobInProgress,
		"planned":      RenderJobInProgress,
		"":             RenderJobInProgress,
		"transcribing": RenderJobInProgress,
	}
	for in, want := range cases {
		if got := ParseRenderJobState(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}
