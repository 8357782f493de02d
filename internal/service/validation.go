package service

import (
	"errors"
	"exam_engine_backend/internal/util"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误字段名使用 json 名称
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, _, err := ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}

// validateStruct 把 validator 的错误转换为 AppError，字段错误放在 fields 中
func validateStruct(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return util.NewValidationError(util.ErrTypeValidation, err.Error())
	}

	errorType := util.ErrTypeValidation
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Namespace()] = fe.Tag()
		if fe.Tag() == "hhmm" {
			errorType = util.ErrTypeInvalidTimeFormat
		}
	}
	return util.NewValidationError(errorType, "invalid request").WithDetail("fields", fields)
}
