package service

import (
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-errors/errors"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func initValidator() {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	translator, _ = uni.GetTranslator("en")

	validate = validator.New(validator.WithRequiredStructEnabled())
	// 错误信息中使用 json 字段名
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = entranslations.RegisterDefaultTranslations(validate, translator)
}

// validateStruct 校验请求参数，失败时返回 *ValidationError
func validateStruct(v interface{}) error {
	validateOnce.Do(initValidator)

	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return invalidInput("%v", err)
	}

	fields := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		// 去掉结构体名前缀，如 EndpointRequest.alertConfig.uptimeThreshold
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		fields[key] = fe.Translate(translator)
	}
	return &ValidationError{Fields: fields}
}

// validateURL 校验 URL 必须为带主机名的 http/https 绝对地址，返回规范化后的 URL
func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Fields: map[string]string{"url": "url is a required field"}}
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || u.Hostname() == "" {
		return "", &ValidationError{Fields: map[string]string{"url": "url must be an absolute http or https URL"}}
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", &ValidationError{Fields: map[string]string{"url": "url must be an absolute http or https URL"}}
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}
