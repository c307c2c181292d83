package prober

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/dushixiang/apiping/internal/models"
	"github.com/go-errors/errors"
)

// classifyError 将传输层错误映射到结果分类，按 timeout > dns > connection > ssl > http > unknown 的优先级判断
func classifyError(err error) models.PingStatus {
	switch {
	case isTimeout(err):
		return models.PingStatusTimeout
	case isDNSError(err):
		return models.PingStatusDNSError
	case isConnectionError(err):
		return models.PingStatusConnectionError
	case isTLSError(err):
		return models.PingStatusSSLError
	case errors.Is(err, errTooManyRedirects):
		return models.PingStatusHTTPError
	default:
		return models.PingStatusUnknownError
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isTLSError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		invalidCert      x509.CertificateInvalidError
		verifyErr        *tls.CertificateVerificationError
		recordErr        tls.RecordHeaderError
		alertErr         tls.AlertError
	)
	if errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:") || strings.Contains(msg, "certificate")
}

// describeError 生成便于阅读的错误信息
func describeError(status models.PingStatus, err error, timeout time.Duration) string {
	switch status {
	case models.PingStatusTimeout:
		return fmt.Sprintf("Request timed out after %dms", timeout.Milliseconds())
	case models.PingStatusDNSError:
		return fmt.Sprintf("DNS resolution failed: %v", err)
	case models.PingStatusConnectionError:
		return fmt.Sprintf("Connection failed: %v", err)
	case models.PingStatusSSLError:
		return fmt.Sprintf("SSL/TLS error: %v", err)
	default:
		return fmt.Sprintf("Request failed: %v", err)
	}
}
