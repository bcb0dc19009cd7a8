package ai

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/poiesic/vectorpipe/core"
)

var (
	// ErrUnsupportedProvider indicates an unknown provider name in Config.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrEmptyResponse indicates the provider returned no vectors.
	ErrEmptyResponse = errors.New("provider returned no embeddings")
)

// statusPattern finds an HTTP status code in provider error messages such as
// "API returned unexpected status code: 429" or "Error 503, Message: ...".
var statusPattern = regexp.MustCompile(`(?i)(?:status(?:\s+code)?|error|http)[\s:=]*([1-5]\d\d)\b`)

var transientMessages = []string{
	"rate limit",
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"temporarily unavailable",
	"unexpected eof",
}

// StatusCode extracts an HTTP status code from err, or 0 if none is present.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var pe *core.ProviderError
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		return pe.StatusCode
	}
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0
	}
	code, _ := strconv.Atoi(m[1])
	return code
}

// IsTransientStatus reports whether an HTTP status code is worth retrying.
func IsTransientStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// ClassifyError wraps a raw provider error in a core.ProviderError.
// Errors that are already classified, and context cancellation, pass through.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var pe *core.ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrQuotaExceeded) {
		return err
	}

	code := StatusCode(err)
	transient := IsTransientStatus(code) || errors.Is(err, context.DeadlineExceeded)

	var netErr net.Error
	if errors.As(err, &netErr) {
		transient = true
	}
	if !transient {
		msg := strings.ToLower(err.Error())
		for _, s := range transientMessages {
			if strings.Contains(msg, s) {
				transient = true
				break
			}
		}
	}
	return &core.ProviderError{StatusCode: code, Transient: transient, Err: err}
}
