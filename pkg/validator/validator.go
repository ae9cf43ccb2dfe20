package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/care-api/pkg/errors"
)

// Validator checks struct tags and reports the first failure as a
// validation AppError naming the json field.
type Validator struct {
	v *validator.Validate
}

var messages = map[string]string{
	"required": "is required",
	"min":      "is too short",
	"max":      "is too long",
	"oneof":    "must be one of",
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

func (v *Validator) Validate(obj interface{}) error {
	err := v.v.Struct(obj)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !stderrors.As(err, &errs) || len(errs) == 0 {
		return errors.Internal(fmt.Errorf("failed to validate: %w", err))
	}

	fe := errs[0]
	field := fieldPath(fe)
	msg, ok := messages[fe.Tag()]
	if !ok {
		msg = "failed " + fe.Tag()
	}
	if fe.Param() != "" {
		msg = fmt.Sprintf("%s %s", msg, fe.Param())
	}
	return errors.Validation(field, fmt.Sprintf("%s %s", field, msg))
}

// fieldPath drops the top level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
