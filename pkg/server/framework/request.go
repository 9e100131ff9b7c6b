package framework

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/validator.v9"
	entranslations "gopkg.in/go-playground/validator.v9/translations/en"

	"github.com/tbd54566975/did-service/internal/util"
)

// validate holds the settings and caches for validating request payloads.
var validate *validator.Validate

// translator is a cache of locale and translation information.
var translator *ut.UniversalTranslator

func init() {
	// Instantiate validator.
	validate = validator.New()

	// Instantiate the english locale for the validator lib.
	enLocale := en.New()

	// Create a translator using english as the fallback locale (first arg).
	// Provide one or more arguments for additional supported locale.
	translator = ut.New(enLocale, enLocale)

	// Register english error messages for validation errors.
	lang, _ := translator.GetTranslator("en")
	_ = entranslations.RegisterDefaultTranslations(validate, lang)

	// Use JSON tag names for errors instead of Go struct field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})
}

// GetParam is a utility to get a path parameter from context, nil if not found
func GetParam(c *gin.Context, param string) *string {
	got := c.Param(param)
	if got == "" {
		return nil
	}
	return &got
}

// GetQueryValue is a utility to get a parameter value from the query string, nil if not found
func GetQueryValue(c *gin.Context, param string) *string {
	got, ok := c.GetQuery(param)
	if !ok || got == "" {
		return nil
	}
	return &got
}

// Decode reads an HTTP request body looking for a JSON document.
// The body is decoded into the value provided.
//
// The provided value is checked for validation tags if it's a struct.
func Decode(r *http.Request, val any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(val); err != nil {
		return NewRequestError(err, http.StatusBadRequest)
	}
	if !util.IsStructPtr(val) {
		return nil
	}
	return ValidateRequest(val)
}

// ValidateRequest checks the validation tags of a struct, translating failures into field errors.
func ValidateRequest(request any) error {
	if err := validate.Struct(request); err != nil {
		var vErrors validator.ValidationErrors
		if !errors.As(err, &vErrors) {
			return NewRequestError(err, http.StatusBadRequest)
		}

		// lang is the language used for error messages.
		//* use value of "Accept-Language" header when more than one
		//* language is supported
		lang, _ := translator.GetTranslator("en")

		fieldErrors := make([]FieldError, 0, len(vErrors))
		for _, vError := range vErrors {
			fieldErrors = append(fieldErrors, FieldError{
				Field: vError.Field(),
				Error: vError.Translate(lang),
			})
		}

		return &SafeError{
			Err:        errors.New("field validation error"),
			StatusCode: http.StatusBadRequest,
			Fields:     fieldErrors,
		}
	}
	return nil
}
