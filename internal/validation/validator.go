package validation

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/dukerupert/checkmate"
	"github.com/dukerupert/checkmate/vin"
	"github.com/go-playground/validator/v10"
)

// Validator provides input validation using go-playground/validator.
//
// It implements echo.Validator, so handlers call c.Validate after c.Bind and
// get a checkmate EINVALID error carrying one message per field.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the checkmate rules registered.
//
// Usage in the server:
//
//	e.Validator = validation.NewValidator()
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so messages match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	RegisterCustomValidators(v)

	return &Validator{validate: v}
}

// Validate validates a struct using its validation tags.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	if _, ok := err.(validator.ValidationErrors); ok {
		return checkmate.ErrorWithFields(FormatValidationErrors(err))
	}
	return checkmate.Invalid("Invalid request: %s", err)
}

// RegisterCustomValidators registers the checkmate-specific rules:
//
//   - vin: a 17 character vehicle identification number
//   - status: a status word ParseStatus accepts, including legacy spellings
//   - state: a known lifecycle state
//   - notbelow=Field: a number not less than the named sibling field; passes
//     when the sibling is an unset pointer
func RegisterCustomValidators(v *validator.Validate) {
	_ = v.RegisterValidation("vin", validateVIN)
	_ = v.RegisterValidation("status", validateStatus)
	_ = v.RegisterValidation("state", validateState)
	_ = v.RegisterValidation("notbelow", validateNotBelow)
}

func validateVIN(fl validator.FieldLevel) bool {
	return vin.Valid(strings.ToUpper(fl.Field().String()))
}

func validateStatus(fl validator.FieldLevel) bool {
	_, err := checkmate.ParseStatus(fl.Field().String())
	return err == nil
}

func validateState(fl validator.FieldLevel) bool {
	return checkmate.LifecycleState(fl.Field().String()).IsValid()
}

func validateNotBelow(fl validator.FieldLevel) bool {
	other, kind, _, found := fl.GetStructFieldOKAdvanced2(fl.Parent(), fl.Param())
	if !found {
		return true
	}
	switch kind {
	case reflect.Float32, reflect.Float64:
		return fl.Field().Float() >= other.Float()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int() >= other.Int()
	}
	return true
}

// FormatValidationErrors converts validator errors to user-friendly messages.
//
// Example output:
//
//	{
//	  "title": "is required",
//	  "status": "must be a known status"
//	}
func FormatValidationErrors(err error) map[string]string {
	errors := make(map[string]string)

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		errors["_error"] = err.Error()
		return errors
	}

	for _, fieldErr := range validationErrors {
		fieldName := fieldErr.Field()
		isString := fieldErr.Kind() == reflect.String

		switch fieldErr.Tag() {
		case "required":
			errors[fieldName] = "is required"
		case "min":
			if isString {
				errors[fieldName] = fmt.Sprintf("must be at least %s characters", fieldErr.Param())
			} else {
				errors[fieldName] = fmt.Sprintf("must be at least %s", fieldErr.Param())
			}
		case "max":
			if isString {
				errors[fieldName] = fmt.Sprintf("must be no more than %s characters", fieldErr.Param())
			} else {
				errors[fieldName] = fmt.Sprintf("must be no more than %s", fieldErr.Param())
			}
		case "uuid":
			errors[fieldName] = "must be a valid UUID"
		case "gte":
			errors[fieldName] = fmt.Sprintf("must be greater than or equal to %s", fieldErr.Param())
		case "lte":
			errors[fieldName] = fmt.Sprintf("must be less than or equal to %s", fieldErr.Param())
		case "oneof":
			errors[fieldName] = fmt.Sprintf("must be one of: %s", fieldErr.Param())
		case "vin":
			errors[fieldName] = "must be a 17 character VIN"
		case "status":
			errors[fieldName] = "must be a known status"
		case "state":
			errors[fieldName] = "must be draft or finalized"
		case "notbelow":
			errors[fieldName] = fmt.Sprintf("must not be less than %s", fieldErr.Param())
		default:
			errors[fieldName] = fmt.Sprintf("failed validation: %s", fieldErr.Tag())
		}
	}

	return errors
}

// SanitizeInput trims whitespace and strips control characters other than
// tabs and newlines.
//
// Usage:
//
//	req.Note = validation.SanitizeInput(req.Note)
func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)

	var builder strings.Builder
	for _, r := range input {
		if r == '\t' || r == '\n' || r == '\r' || !unicode.IsControl(r) {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// ValidateFileUpload checks an uploaded photo against checkmate.MaxUploadSize
// and checkmate.AcceptedImageTypes and returns its content type.
//
// The type is sniffed from the first 512 bytes. Formats the sniffer does not
// know (HEIC) fall back to the declared part Content-Type.
func ValidateFileUpload(header *multipart.FileHeader) (string, error) {
	if header.Size > checkmate.MaxUploadSize {
		return "", checkmate.Invalid("Photo exceeds maximum size of %d bytes", checkmate.MaxUploadSize)
	}

	file, err := header.Open()
	if err != nil {
		return "", checkmate.Internal("Failed to open uploaded file", err)
	}
	defer file.Close()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil || n == 0 {
		return "", checkmate.Invalid("Photo is empty or unreadable")
	}

	contentType := http.DetectContentType(buffer[:n])
	if contentType == "application/octet-stream" {
		contentType, _, _ = strings.Cut(header.Header.Get("Content-Type"), ";")
		contentType = strings.TrimSpace(contentType)
	}

	if !checkmate.IsAcceptedImageType(contentType) {
		return "", checkmate.Invalid("Photo type %s is not allowed (allowed types: %s)",
			contentType, strings.Join(checkmate.AcceptedImageTypes, ", "))
	}

	return contentType, nil
}
