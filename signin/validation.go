package signin

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const MinPasswordLength = 6

const (
	emptyEmailMessage     = "Email cannot be empty"
	invalidEmailMessage   = "Please enter a valid email address"
	emptyFirstNameMessage = "Name cannot be empty"
	emptyLastNameMessage  = "Surname cannot be empty"
	emptyPasswordMessage  = "Password cannot be empty"
	shortPasswordMessage  = "Password must be at least 6 characters"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9+._%\-]{1,256}@[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`)

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validateEmail(email string) *Error {
	if isBlank(email) {
		return validationError(EmptyField, FieldEmail, emptyEmailMessage)
	}
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return validationError(InvalidEmailFormat, FieldEmail, invalidEmailMessage)
	}
	return nil
}

func validateName(firstName, lastName string) *Error {
	if isBlank(firstName) {
		return validationError(EmptyField, FieldFirstName, emptyFirstNameMessage)
	}
	if isBlank(lastName) {
		return validationError(EmptyField, FieldLastName, emptyLastNameMessage)
	}
	return nil
}

func validatePassword(password string) *Error {
	if isBlank(password) {
		return validationError(EmptyField, FieldPassword, emptyPasswordMessage)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return validationError(PasswordTooShort, FieldPassword, shortPasswordMessage)
	}
	return nil
}
