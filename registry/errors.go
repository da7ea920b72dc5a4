package registry

import (
	"errors"
	"fmt"
)

// NotFoundError identifies a missing registry object by kind and name.
type NotFoundError struct {
	Kind    string
	Name    string
	Project string
}

func (n NotFoundError) Error() string {
	return fmt.Sprintf("%s %q does not exist in project %q", n.Kind, n.Name, n.Project)
}

func IsNotFound(err error) bool {
	var notFoundErr NotFoundError
	return errors.As(err, &notFoundErr)
}
