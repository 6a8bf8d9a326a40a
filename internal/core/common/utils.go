package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/agenthands/chronicle/internal/core/errs"
)

// DecodeJSON unmarshals a stored document into a type T.
func DecodeJSON[T any](data []byte) (T, error) {
	var result T
	if len(data) == 0 {
		return result, fmt.Errorf("no JSON document to decode")
	}
	if err := json.Unmarshal(data, &result); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// NormalizeJSON round-trips a loosely typed value through JSON so that values
// recorded from Go callers compare equal to values read back from storage
// (ints become float64, structs become maps).
func NormalizeJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Validation("value is not JSON-encodable: %v", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}
	return out, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and folds failures into errs.ErrValidation.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errs.Validation("field %s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return errs.Validation("%v", err)
	}
	return nil
}
