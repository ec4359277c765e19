package functions

import (
	"errors"
	"fmt"

	"github.com/wasilibs/go-re2"
)

var (
	// ErrNotFound is returned when no file exists for a function name.
	ErrNotFound = errors.New("function not found")
	// ErrPermission is returned when the function file cannot be executed.
	ErrPermission = errors.New("permission denied")
	// ErrInvalidName is returned for names that cannot be a plain filename.
	ErrInvalidName = errors.New("invalid function name")
)

// namePattern keeps names a single path element and a single cron token.
var namePattern = re2.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateName checks that name can address a file directly inside the
// functions directory.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
