package repository

import (
	"errors"

	"gorm.io/gorm"
)

// translateError 把 gorm 错误转换为仓储层错误（需要 gorm.Config.TranslateError）
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}
