package account

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/learnlink/backend/core"
)

var (
	identifierTag   = "identifier"
	identifierText  = "Matric format invalid. Use e.g. STU-1A2B3C."
	identifierRegex = regexp.MustCompile(`^(STU-[A-F0-9]{6}|[A-Z0-9-]{4,20})$`)

	classLevelTag  = "classlevel"
	classLevelText = "Invalid class level."

	studentOnlyTag  = "studentonly"
	studentOnlyText = "Only students can sign up."

	// password policy
	pwdMinLen     = 6
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("Password must be at least %d characters.", pwdMinLen)

	// bcrypt ignores anything past 72 bytes
	pwdMaxLen     = 72
	pwdMaxLenTag  = "pwdmaxlen"
	pwdMaxLenText = fmt.Sprintf("Password must be at most %d bytes.", pwdMaxLen)

	pwdCharsTag  = "pwdchars"
	pwdCharsText = "Use at least one letter and one number."
	letterRegex  = regexp.MustCompile(`[A-Za-z]`)
	digitRegex   = regexp.MustCompile(`[0-9]`)
)

// InitValidators registers the account validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(identifierTag, identifierValidation)
	core.RegisterCustomTranslation(validate, translator, identifierTag, identifierText)

	validate.RegisterStructValidation(accountStructValidation, NewStudent{}, NewPassword{}, PasswordChange{})
	core.RegisterCustomTranslation(validate, translator, classLevelTag, classLevelText)
	core.RegisterCustomTranslation(validate, translator, studentOnlyTag, studentOnlyText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdMaxLenTag, pwdMaxLenText)
	core.RegisterCustomTranslation(validate, translator, pwdCharsTag, pwdCharsText)
}

// IsIdentifier reports whether id is a well-formed (upper-cased) uniqueId.
func IsIdentifier(id string) bool {
	return identifierRegex.MatchString(id)
}

// Custom Validators

func identifierValidation(fl validator.FieldLevel) bool {
	return IsIdentifier(fl.Field().String())
}

// accountStructValidation does struct level validation on account inputs.
func accountStructValidation(sl validator.StructLevel) {
	switch in := sl.Current().Interface().(type) {
	case NewStudent:
		validateStudentRole(in, sl)
		validatePassword(in.Password, sl)
	case NewPassword:
		validatePassword(in.Password, sl)
	case PasswordChange:
		validatePassword(in.Password, sl)
	}
}

// validateStudentRole checks that only students sign up and that they carry a valid class level.
func validateStudentRole(ns NewStudent, sl validator.StructLevel) {
	if ns.Role == "" {
		return // reported by `required`
	}
	if ns.Role != RoleStudent {
		sl.ReportError(ns.Role, "type", "Role", studentOnlyTag, "")
		return
	}
	switch {
	case ns.ClassLevel == "":
		sl.ReportError(ns.ClassLevel, "classLevel", "ClassLevel", "required", "")
	case !IsClassLevel(ns.ClassLevel):
		sl.ReportError(ns.ClassLevel, "classLevel", "ClassLevel", classLevelTag, "")
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 6 characters
// - maxLen: 72 bytes
// - at least 1 letter & 1 digit
// Every failing rule is reported.
func validatePassword(pwd string, sl validator.StructLevel) {
	if pwd == "" {
		return // reported by `required`
	}
	if utf8.RuneCountInString(pwd) < pwdMinLen {
		sl.ReportError(pwd, "password", "Password", pwdMinLenTag, "")
	}
	if len(pwd) > pwdMaxLen {
		sl.ReportError(pwd, "password", "Password", pwdMaxLenTag, "")
	}
	if !(letterRegex.MatchString(pwd) && digitRegex.MatchString(pwd)) {
		sl.ReportError(pwd, "password", "Password", pwdCharsTag, "")
	}
}

func (ns *NewStudent) Validate(validate *validator.Validate, translator ut.Translator) error {
	ns.clean()
	if ns.Role != RoleStudent {
		ns.ClassLevel = ""
	}
	return core.TranslateValidationErrors(validate.Struct(ns), translator)
}

func (ns *NewStaff) Validate(validate *validator.Validate, translator ut.Translator) error {
	ns.clean()
	return core.TranslateValidationErrors(validate.Struct(ns), translator)
}

func (c *Credentials) Validate(validate *validator.Validate, translator ut.Translator) error {
	c.clean()
	return core.TranslateValidationErrors(validate.Struct(c), translator)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate, translator ut.Translator) error {
	pr.clean()
	return core.TranslateValidationErrors(validate.Struct(pr), translator)
}

func (np NewPassword) Validate(validate *validator.Validate, translator ut.Translator) error {
	return core.TranslateValidationErrors(validate.Struct(np), translator)
}

func (pc PasswordChange) Validate(validate *validator.Validate, translator ut.Translator) error {
	return core.TranslateValidationErrors(validate.Struct(pc), translator)
}

func (up *UpdateProfile) Validate(validate *validator.Validate, translator ut.Translator) error {
	up.clean()
	return core.TranslateValidationErrors(validate.Struct(up), translator)
}
