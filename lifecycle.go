package lifetrack

import (
	"errors"
)

// Resource is anything with a tracked lifetime. Types embedding Handle
// satisfy it.
type Resource interface {
	EnsureActive() error
	Close() error
}

// Use scopes r to fn. Entering a closed resource fails. On the way out r is
// closed exactly once, whether fn returns normally, returns an error or
// panics; a Close already made inside fn is tolerated.
func Use[R Resource](r R, fn func(R) error) (err error) {
	if err := r.EnsureActive(); err != nil {
		return err
	}

	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return fn(r)
}

func With(r Resource, fn func() error) error {
	return Use(r, func(Resource) error { return fn() })
}
