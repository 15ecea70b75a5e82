// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/paiban/kaowu/pkg/errors"
	"github.com/paiban/kaowu/pkg/logger"
)

var validate = validator.New()

// DefaultMaxBodyBytes 请求体大小上限
const DefaultMaxBodyBytes int64 = 10 << 20

// decodeJSON 解析请求体，限制大小并拒绝未知字段
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst interface{}) *errors.AppError {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.Wrap(err, errors.CodeInvalidInput, "请求体过大").
				WithField("limit", maxErr.Limit)
		}
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败").WithField("reason", err.Error())
	}
	return nil
}

// validateStruct 按结构体标签校验请求
func validateStruct(v interface{}) *errors.AppError {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.Wrap(err, errors.CodeInvalidInput, "请求校验失败")
	}
	ve := &errors.ValidationErrors{}
	for _, fe := range fieldErrs {
		ve.Add(fe.Namespace(), fmt.Sprintf("不满足规则 %s %s", fe.Tag(), fe.Param()))
	}
	return ve.ToAppError()
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn().Err(err).Msg("写入响应失败")
	}
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.CodeInternal, "内部错误")
	}
	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("code", string(appErr.Code)).Msg("请求处理失败")
	}

	body := map[string]interface{}{
		"error":   true,
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	respondJSON(w, appErr.HTTPStatus, body)
}
