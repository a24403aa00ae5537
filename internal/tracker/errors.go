package tracker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoProductLinks   = errors.New("no product links found")
	ErrMalformedLink    = errors.New("malformed product link")
	ErrRecordIncomplete = errors.New("product record incomplete")
	ErrEmptyField       = errors.New("field is empty")
	ErrUnavailable      = errors.New("product unavailable")
)

// MissingFieldsError lists every field that could not be read for a product.
type MissingFieldsError struct {
	ASIN   string
	Fields []string
	Errs   []error
}

func (e *MissingFieldsError) add(field string, err error) {
	e.Fields = append(e.Fields, field)
	e.Errs = append(e.Errs, fmt.Errorf("%s: %w", field, err))
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("product %s missing %s", e.ASIN, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrRecordIncomplete
}

func (e *MissingFieldsError) Unwrap() []error {
	return e.Errs
}
