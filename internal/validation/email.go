// Package validation содержит функции валидации входных данных.
package validation

import "regexp"

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail проверяет адрес электронной почты покупателя.
func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}
