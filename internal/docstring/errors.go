package docstring

import "fmt"

// MissingHeaderError is returned when a mandatory marker is absent.
type MissingHeaderError struct {
	Field  string
	Marker string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("description has no %s marker for mandatory field %q", e.Marker, e.Field)
}

// HeaderOrderError is returned when markers appear out of the fixed order.
type HeaderOrderError struct {
	Field string // field whose marker is misplaced
	After string // field whose marker must precede it
}

func (e *HeaderOrderError) Error() string {
	return fmt.Sprintf("description marker for %q must come after %q", e.Field, e.After)
}

// EmptyFieldError is returned when a field that needs a value has none.
type EmptyFieldError struct {
	Field string
}

func (e *EmptyFieldError) Error() string {
	return fmt.Sprintf("description field %q cannot be empty", e.Field)
}
