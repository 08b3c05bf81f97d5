package core

import (
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
	notBlankTag  = "notblank"
	notBlankText = "this field cannot be blank"

	toolIDTag   = "toolid"
	toolIDText  = "invalid tool id"
	toolIDRegex = regexp.MustCompile(`^[\w\-./]{1,64}$`)

	langCodeTag  = "langcode"
	langCodeText = "unsupported language"

	taskStatusTag  = "taskstatus"
	taskStatusText = "status must be one of: open, done"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// LanguageCodes are the languages translation requests may name.
var LanguageCodes = []string{"en", "fr", "es", "pt", "ar", "sw", "am", "hi", "bn", "vi", "id", "zh"}

// Task statuses.
const (
	TaskStatusOpen = "open"
	TaskStatusDone = "done"
)

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
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
	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslation(validate, translator, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(toolIDTag, toolIDValidation)
	RegisterCustomTranslation(validate, translator, toolIDTag, toolIDText)

	_ = validate.RegisterValidation(langCodeTag, langCodeValidation)
	RegisterCustomTranslation(validate, translator, langCodeTag, langCodeText)

	_ = validate.RegisterValidation(taskStatusTag, taskStatusValidation)
	RegisterCustomTranslation(validate, translator, taskStatusTag, taskStatusText)

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

// TranslateValidationErrors maps validator errors to {json field: message}.
func TranslateValidationErrors(errs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(errs))
	for _, vErr := range errs {
		fldErrs[vErr.Field()] = vErr.Translate(translator)
	}
	return fldErrs
}

// Custom Global Validators

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// toolIDValidation accepts the identifiers the registration form hands out (letters, digits, `_-./`).
func toolIDValidation(fl validator.FieldLevel) bool {
	return toolIDRegex.MatchString(fl.Field().String())
}

func langCodeValidation(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	for _, c := range LanguageCodes {
		if c == code {
			return true
		}
	}
	return false
}

func taskStatusValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case TaskStatusOpen, TaskStatusDone:
		return true
	}
	return false
}
