package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

var (
	// custom validation tags & texts
	emailShapeTag   = "emailshape"
	emailShapeText  = "Email format is invalid."
	emailShapeRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	phoneTag   = "phone"
	phoneText  = "Phone format looks invalid."
	phoneRegex = regexp.MustCompile(`^[0-9()+\- ]{7,20}$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "{0} is required."
)

// NewValidator returns a validator configured with the english translator and
// every global custom validation.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	InitValidators(validate, translator)
	return validate, translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
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
	_ = validate.RegisterValidation(emailShapeTag, emailShapeValidation)
	RegisterCustomTranslation(validate, translator, emailShapeTag, emailShapeText)

	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
// A `{0}` placeholder in text is replaced by the humanized field name.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, HumanizeField(fe.Field()))
			return s
		},
	)
}

// TranslateValidationErrors turns validator.ValidationErrors into a single *ValidationError,
// keeping every message reported for a field. Any other error is returned untouched.
func TranslateValidationErrors(err error, translator ut.Translator) error {
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}
	verr := &ValidationError{}
	for _, fe := range vErrs {
		verr.Add(fe.Field(), fe.Translate(translator))
	}
	return verr
}

// IsEmailShaped reports whether s looks like an email address.
func IsEmailShaped(s string) bool {
	return emailShapeRegex.MatchString(s)
}

// Custom Global Validators

// emailShapeValidation only checks for a basic `local@domain.tld` shape.
func emailShapeValidation(fl validator.FieldLevel) bool {
	return IsEmailShaped(fl.Field().String())
}

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}
