package submit

import (
	"context"
	"errors"
	"fmt"

	"indexflow-go/pkg/ledger"
)

// Adapter is one indexing backend. The two implementations differ in failure
// granularity: a BatchSize of 1 means per-URL calls where one failure is
// isolated to one URL, a larger BatchSize means one call per batch where a
// failure leaves the whole batch unconfirmed.
type Adapter interface {
	Service() ledger.Service
	// Enabled reports whether the adapter has usable credentials. A disabled
	// adapter is skipped for the run, not an error.
	Enabled() bool
	// BatchSize is the number of URLs per Submit call.
	BatchSize() int
	// DailyLimit is the per-day submission quota, 0 for unlimited.
	DailyLimit() int
	Submit(ctx context.Context, urls []string) error
}

// AuthorizationError is a 403-class response from a service. It is fatal for
// the adapter's run: these need operator intervention, not retries.
type AuthorizationError struct {
	Service ledger.Service
	Hint    string
	Err     error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: authorization failed (%s): %v", e.Service, e.Hint, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// QuotaExceededError is a 429-class response. The run halts gracefully and a
// later invocation resumes from the persisted cursor.
type QuotaExceededError struct {
	Service ledger.Service
	Err     error
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s: quota exceeded: %v", e.Service, e.Err)
}

func (e *QuotaExceededError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status code from a service to the error
// taxonomy. 2xx yields nil; anything not auth- or quota-shaped is transient.
func classifyStatus(service ledger.Service, status int, body string, hint string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 401 || status == 403:
		return &AuthorizationError{
			Service: service,
			Hint:    hint,
			Err:     fmt.Errorf("status %d: %s", status, body),
		}
	case status == 429:
		return &QuotaExceededError{
			Service: service,
			Err:     fmt.Errorf("status %d: %s", status, body),
		}
	default:
		return fmt.Errorf("%s: status %d: %s", service, status, body)
	}
}

func isAuthError(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

func isQuotaError(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
