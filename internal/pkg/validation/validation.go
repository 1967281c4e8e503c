// Package validation 自定义 gin binding 校验规则
package validation

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// DateLayout 日期参数格式
const DateLayout = "2006-01-02"

// CampaignStatuses 允许写入的广告系列状态
var CampaignStatuses = map[string]struct{}{
	"ACTIVE":   {},
	"PAUSED":   {},
	"ARCHIVED": {},
	"DELETED":  {},
}

var registerOnce sync.Once

// Register 在 gin 默认校验器上注册 fbstatus、ymd
func Register() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		err = RegisterOn(v)
	})
	return err
}

// RegisterOn 注册到指定校验器
func RegisterOn(v *validator.Validate) error {
	if err := v.RegisterValidation("fbstatus", validateFBStatus); err != nil {
		return err
	}
	return v.RegisterValidation("ymd", validateYMD)
}

func validateFBStatus(fl validator.FieldLevel) bool {
	_, ok := CampaignStatuses[fl.Field().String()]
	return ok
}

func validateYMD(fl validator.FieldLevel) bool {
	_, err := time.Parse(DateLayout, fl.Field().String())
	return err == nil
}
