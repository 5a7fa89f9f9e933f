package submit

import (
	"testing"

	"indexflow-go/pkg/ledger"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"ok", 200, func(err error) bool { return err == nil }},
		{"accepted", 202, func(err error) bool { return err == nil }},
		{"unauthorized", 401, isAuthError},
		{"forbidden", 403, isAuthError},
		{"rate limited", 429, isQuotaError},
		{"server error is transient", 500, func(err error) bool {
			return err != nil && !isAuthError(err) && !isQuotaError(err)
		}},
		{"bad request is transient", 400, func(err error) bool {
			return err != nil && !isAuthError(err) && !isQuotaError(err)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyStatus(ledger.ServiceGoogle, tc.status, "body", "hint")
			if !tc.check(err) {
				t.Errorf("status %d classified unexpectedly: %v", tc.status, err)
			}
		})
	}
}

func TestAuthorizationError_CarriesHint(t *testing.T) {
	err := classifyStatus(ledger.ServiceGoogle, 403, "forbidden", googleAuthHint)
	if err == nil {
		t.Fatal("Expected an error for 403")
	}
	ae, ok := err.(*AuthorizationError)
	if !ok {
		t.Fatalf("Expected *AuthorizationError, got: %T", err)
	}
	if ae.Hint != googleAuthHint {
		t.Errorf("Expected operator hint preserved, got: %q", ae.Hint)
	}
}
