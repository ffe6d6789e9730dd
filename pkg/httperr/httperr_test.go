package httperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindChecks(t *testing.T) {
	bad := NewBadRequest("months 7 not allowed")
	missing := NewNotFound("declaration missing")
	other := errors.New("other")

	cases := []struct {
		name string
		err  error
		bad  bool
		nf   bool
	}{
		{name: "nil", err: nil},
		{name: "bad request", err: bad, bad: true},
		{name: "not found", err: missing, nf: true},
		{name: "unrelated", err: other},
		{name: "wrapped bad request", err: fmt.Errorf("create: %w", bad), bad: true},
		{name: "wrapped not found", err: fmt.Errorf("get: %w", missing), nf: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := IsBadRequest(tc.err); got != tc.bad {
				t.Fatalf("IsBadRequest=%v want %v", got, tc.bad)
			}
			if got := IsNotFound(tc.err); got != tc.nf {
				t.Fatalf("IsNotFound=%v want %v", got, tc.nf)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	if got := NewBadRequest("org_code is required").Error(); got != "org_code is required" {
		t.Fatalf("got %q", got)
	}
	if got := NewNotFound("declaration missing").Error(); got != "declaration missing" {
		t.Fatalf("got %q", got)
	}
}
