// Package validation validates bucket and note input using validator/v10 and
// converts failures into coded domain errors with field-level details.
package validation

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/stickynotes/stickynotes-server/internal/domain"
	domainerrors "github.com/stickynotes/stickynotes-server/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator with the note domain rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	must := func(tag string, fn func(string) bool) {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	must("tag", domain.IsKnownTag)
	must("bucketcolor", domain.IsBucketColor)
	must("notecolor", domain.IsNoteColor)
	must("bucketicon", domain.IsBucketIcon)

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fields := make([]domainerrors.FieldError, 0, len(validationErrs))
	for _, e := range validationErrs {
		fields = append(fields, domainerrors.FieldError{
			Field:   fieldPath(e),
			Message: friendlyMessage(e),
		})
	}
	slices.SortFunc(fields, func(a, b domainerrors.FieldError) int {
		return cmp.Compare(a.Field, b.Field)
	})

	return domainerrors.ValidationWithFields("validation failed", fields)
}

// fieldPath drops the top-level struct name: "NoteInput.tags[1]" -> "tags[1]".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return e.Field()
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "tag":
		return "is not a known tag"
	case "bucketcolor":
		return "must be one of: " + strings.Join(domain.BucketColors, " ")
	case "notecolor":
		return "must be one of: " + strings.Join(domain.NoteColors, " ")
	case "bucketicon":
		return "is not a known icon"
	default:
		return "is invalid"
	}
}
