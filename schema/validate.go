package schema

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce  sync.Once
	validatorInst *validator.Validate
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validatorInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validatorInst
}

// ValidationError reports a single struct-tag validation failure, giving
// handlers a field-specific diagnostic to put in an RPC error's data
// payload.
type ValidationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
}

func (e ValidationError) String() string {
	return fmt.Sprintf("%s: failed %q", e.Field, e.Tag)
}

// Validate checks v against its `validate` struct tags, returning the list
// of field failures (nil if v is valid). v must be a struct or non-nil
// pointer to struct; for anything else the validator returns an error,
// reported as a single ValidationError with an empty Field and the
// validator's error text as its Tag.
func Validate(v any) []ValidationError {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []ValidationError{{Field: "", Tag: err.Error()}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{Field: fe.Namespace(), Tag: fe.Tag()})
	}
	return out
}
