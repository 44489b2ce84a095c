package question

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/qsnap/core"
)

var (
	requestKindTag  = "requestkind"
	requestKindText = "request type must be one of image_correction, audio_call or video_call"
)

// InitValidators registers the question validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(requestKindTag, func(fl validator.FieldLevel) bool {
		return Kind(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, requestKindTag, requestKindText)
}
