package prober

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dushixiang/apiping/internal/models"
)

// outcome 收到响应后的判定结果
type outcome struct {
	status           models.PingStatus
	message          string
	performanceIssue bool
	validation       *models.ValidationResults
}

// evaluate 根据期望响应判定结果。
// 状态码不满足要求为 http_error；状态码满足但内容类型或响应体不满足为 validation_error；
// 响应时间上限只记录性能问题，不影响成功与否
func evaluate(statusCode int, contentType, body string, responseTimeMs int64, expected *models.ExpectedResponse) outcome {
	if expected == nil {
		if statusOK(statusCode) {
			return outcome{status: models.PingStatusSuccess}
		}
		return outcome{
			status:  models.PingStatusHTTPError,
			message: fmt.Sprintf("HTTP %d %s", statusCode, http.StatusText(statusCode)),
		}
	}

	vr := &models.ValidationResults{}
	statusValid := true
	assertionsValid := true

	if expected.StatusCode > 0 {
		statusValid = statusCode == expected.StatusCode
		vr.StatusCodeValid = boolPtr(statusValid)
		if !statusValid {
			vr.Details = append(vr.Details, fmt.Sprintf("Expected status %d, got %d", expected.StatusCode, statusCode))
		}
	} else if !statusOK(statusCode) {
		statusValid = false
		vr.Details = append(vr.Details, fmt.Sprintf("HTTP %d %s", statusCode, http.StatusText(statusCode)))
	}

	if expected.ContentType != "" {
		valid := strings.Contains(strings.ToLower(contentType), strings.ToLower(expected.ContentType))
		vr.ContentTypeValid = boolPtr(valid)
		if !valid {
			assertionsValid = false
			vr.Details = append(vr.Details, fmt.Sprintf("Expected content type %s, got %s", expected.ContentType, contentType))
		}
	}

	if expected.BodyContains != "" {
		valid := strings.Contains(body, expected.BodyContains)
		vr.BodyValid = boolPtr(valid)
		if !valid {
			assertionsValid = false
			vr.Details = append(vr.Details, fmt.Sprintf("Response body does not contain %q", expected.BodyContains))
		}
	}

	result := outcome{validation: vr}
	if expected.MaxResponseTimeMs > 0 {
		valid := responseTimeMs <= expected.MaxResponseTimeMs
		vr.ResponseTimeValid = boolPtr(valid)
		if !valid {
			result.performanceIssue = true
			vr.Details = append(vr.Details, fmt.Sprintf("Response time %dms exceeds maximum %dms", responseTimeMs, expected.MaxResponseTimeMs))
		}
	}

	switch {
	case !statusValid:
		result.status = models.PingStatusHTTPError
		result.message = vr.Details[0]
	case !assertionsValid:
		result.status = models.PingStatusValidationError
		result.message = "Response validation failed: " + strings.Join(failedDetails(vr), "; ")
	default:
		result.status = models.PingStatusSuccess
	}
	return result
}

// failedDetails 排除性能提示，只保留导致失败的断言信息
func failedDetails(vr *models.ValidationResults) []string {
	out := make([]string, 0, len(vr.Details))
	for _, d := range vr.Details {
		if strings.HasPrefix(d, "Response time ") {
			continue
		}
		out = append(out, d)
	}
	return out
}

func statusOK(code int) bool {
	return code >= 200 && code < 400
}

func boolPtr(v bool) *bool {
	return &v
}
