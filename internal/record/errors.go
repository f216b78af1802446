package record

import (
	"errors"
	"fmt"
)

// UnknownRecordError is returned when a reference names a record that is not
// in the store, or when a deleted record is used.
type UnknownRecordError struct {
	Type string
	ID   string
}

func (e *UnknownRecordError) Error() string {
	return fmt.Sprintf("unknown record %s:%s", e.Type, e.ID)
}

// UnknownTypeError is returned for a record type the schema does not declare.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown record type %q", e.Type)
}

// UnknownFieldError is returned for a field the record's model does not declare.
type UnknownFieldError struct {
	Type  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("%s has no field %q", e.Type, e.Field)
}

// TypeMismatchError is returned when a value does not fit the declared field.
type TypeMismatchError struct {
	Type  string
	Field string
	Want  string
	Got   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s.%s: want %s, got %s", e.Type, e.Field, e.Want, e.Got)
}

// DuplicateRecordError is returned when creating a record whose id is taken.
type DuplicateRecordError struct {
	Type string
	ID   string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("record %s:%s already exists", e.Type, e.ID)
}

// SchemaError is returned by NewSchema for declarations that cannot be resolved.
type SchemaError struct {
	Model   string
	Field   string
	Message string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema: %s.%s: %s", e.Model, e.Field, e.Message)
	}
	return fmt.Sprintf("schema: %s: %s", e.Model, e.Message)
}

// IsUnknownRecord reports whether err is or wraps an UnknownRecordError.
func IsUnknownRecord(err error) bool {
	var ure *UnknownRecordError
	return errors.As(err, &ure)
}

// IsUnknownField reports whether err is or wraps an UnknownFieldError.
func IsUnknownField(err error) bool {
	var ufe *UnknownFieldError
	return errors.As(err, &ufe)
}

// IsTypeMismatch reports whether err is or wraps a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var tme *TypeMismatchError
	return errors.As(err, &tme)
}
