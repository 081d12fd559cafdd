package core

import (
	"context"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = "only alphanumeric characters and underscores are allowed"
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	schoolYearTag   = "schoolyear"
	schoolYearText  = "{0} must look like 2024-2025"
	schoolYearRegex = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

	existsTag  = "exists"
	existsText = "the selected {0} is invalid"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// ExistsFunc reports whether a live row with the given id exists in table.
type ExistsFunc func(ctx context.Context, table string, id int64) (bool, error)

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
// exists backs the `exists=<table>` tag; validate with StructCtx so it receives the request context.
func InitValidators(validate *validator.Validate, translator ut.Translator, exists ExistsFunc) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslation(validate, translator, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(schoolYearTag, schoolYearValidation)
	RegisterCustomTranslation(validate, translator, schoolYearTag, schoolYearText)

	if exists != nil {
		_ = validate.RegisterValidationCtx(existsTag, existsValidation(exists))
		RegisterCustomTranslation(validate, translator, existsTag, existsText)
	}

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// TranslateErrors maps validator errors to field errors keyed by JSON field name.
func TranslateErrors(errs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(errs))
	for _, vErr := range errs {
		key := vErr.Namespace()
		if i := strings.IndexByte(key, '.'); i >= 0 {
			key = key[i+1:] // drop the root struct name
		}
		fldErrs[key] = vErr.Translate(translator)
	}
	return fldErrs
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

func notBlankValidation(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// schoolYearValidation accepts "YYYY-YYYY" where the second year follows the first.
func schoolYearValidation(fl validator.FieldLevel) bool {
	m := schoolYearRegex.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	return atoi(m[2])-atoi(m[1]) == 1
}

func existsValidation(exists ExistsFunc) validator.FuncCtx {
	return func(ctx context.Context, fl validator.FieldLevel) bool {
		var id int64
		switch fld := fl.Field(); fld.Kind() {
		case reflect.Int, reflect.Int32, reflect.Int64:
			id = fld.Int()
		default:
			return false
		}
		ok, err := exists(ctx, fl.Param(), id)
		return err == nil && ok
	}
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
