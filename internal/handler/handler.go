package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dushixiang/apiping/internal/service"
	"github.com/go-errors/errors"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError 将服务层错误映射为 HTTP 状态码，响应体统一为 {"error": "..."}
func respondError(c echo.Context, logger *zap.Logger, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":  "参数校验失败",
			"fields": ve.Fields,
		})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		logger.Error("请求处理失败",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "服务器内部错误"})
	}
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

// queryInt 解析整数查询参数，为空时返回 0
func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Errorf("%s 必须是整数", name)
	}
	return v, nil
}

func queryInt64Ptr(c echo.Context, name string) (*int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.Errorf("%s 必须是整数", name)
	}
	return &v, nil
}

func queryBoolPtr(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.Errorf("%s 必须是 true 或 false", name)
	}
	return &v, nil
}

// queryTime 解析时间查询参数，支持 RFC3339、日期和毫秒时间戳，返回毫秒
func queryTime(c echo.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateTime, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, errors.Errorf("%s 时间格式不正确", name)
}
