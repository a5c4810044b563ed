package eventsys

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// CallbackError reports a single callback that failed during Notify, either by
// returning an error or by panicking.
type CallbackError struct {
	ID    ID
	Err   error
	Panic any
}

func (e *CallbackError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("subscriber %d panicked: %v", e.ID, e.Panic)
	}
	return fmt.Sprintf("subscriber %d failed: %v", e.ID, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// formatFailures renders the aggregate returned by Notify.
func formatFailures(errs []error) string {
	if len(errs) == 1 {
		return "notify: " + errs[0].Error()
	}

	lines := make([]string, 0, len(errs))
	for _, err := range errs {
		lines = append(lines, "\t* "+err.Error())
	}
	return fmt.Sprintf("notify: %d subscribers failed:\n%s", len(errs), strings.Join(lines, "\n"))
}

func newFailures() *multierror.Error {
	return &multierror.Error{ErrorFormat: formatFailures}
}
