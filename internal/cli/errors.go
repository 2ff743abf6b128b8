package cli

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/mark3labs/openapi2ts/internal/spec"
)

var ErrUsage = errors.New("cli usage error")

type usageError struct {
	msg string
}

func newUsageError(msg string) error {
	return usageError{msg: msg}
}

func (e usageError) Error() string {
	return e.msg
}

func (e usageError) Is(target error) bool {
	return target == ErrUsage
}

// specUsageError turns a SpecError into a usage error naming the construct and
// where it sits. Other errors pass through unchanged.
func specUsageError(err error) error {
	var se *spec.SpecError
	if !errors.As(err, &se) {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", se.Code, se.Message)
	if se.Subject != "" {
		fmt.Fprintf(&b, "\nConstruct: %s", se.Subject)
	}
	if se.Location != "" {
		fmt.Fprintf(&b, "\nLocation: %s", se.Location)
	}
	if se.Pointer != "" {
		fmt.Fprintf(&b, "\nPointer: %s", se.Pointer)
	}
	ue := newUsageError(b.String())
	switch se.Code {
	case spec.ConfigurationError:
		return errors.WithHint(ue, "each filter axis takes either an include list or an exclude list, not both")
	case spec.NotSupportedError:
		return errors.WithHint(ue, "set strict: false to skip unsupported constructs with a warning")
	case spec.NamingConflictError:
		return errors.WithHint(ue, "rename one of the constructs, or set x-operation-name on the operation")
	case spec.NetworkError:
		return errors.WithHint(ue, "check the URL or download the document and pass a file path")
	}
	return ue
}
