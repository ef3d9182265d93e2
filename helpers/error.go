package helpers

import (
	"strings"

	"github.com/juju/errors"
)

var ErrStopped = errors.New("stopped")

// FoldErrors joins non-nil errors into one, separated by newline.
// Single error is returned as is, so errors.Cause still works.
func FoldErrors(errs []error) error {
	nonNil := make([]error, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			nonNil = append(nonNil, e)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}
	ss := make([]string, len(nonNil))
	for i, e := range nonNil {
		ss[i] = e.Error()
	}
	return errors.New(strings.Join(ss, "\n"))
}
