// Package notifier delivers password-reset links to users.
package notifier

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

const (
	ResetSubject = "Password Reset"

	DriverLog = "log"
	DriverSES = "ses"
)

var ErrThrottled = errors.New("notifier: outbound send budget exhausted")

// Notifier sends a reset link to email. Delivery is best-effort.
type Notifier interface {
	SendReset(ctx context.Context, email, link string) error
}

// ResetLink embeds token in <baseURL>/reset-password?token=<token>.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func resetBody(link string) string {
	return "To reset your password, please click on the following link: " + link
}
