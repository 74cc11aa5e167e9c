package depository

import "errors"

var (
	// ErrRecordNotFound is returned by Find and Update when the key is nil or
	// matches no row.
	ErrRecordNotFound = errors.New("record not found")

	// ErrUnknownConversionType is returned by Convert for input that is neither
	// a row nor a list of rows, and for rows carrying columns the model does not
	// declare.
	ErrUnknownConversionType = errors.New("unknown conversion type")

	// ErrUnsupportedOperator is carried by a Result when an operator outside
	// the allow-list is applied.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnknownScope is carried by a Result built from an unregistered named scope.
	ErrUnknownScope = errors.New("unknown scope")

	// ErrCoercion is returned when a value cannot be coerced to its column's type.
	ErrCoercion = errors.New("value coercion failed")

	// ErrNoDatabase is returned when a repository has no way to reach a dataset.
	ErrNoDatabase = errors.New("no database configured")
)
