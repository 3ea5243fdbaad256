package classifier

import "strings"

// Validation is the result of the input gate.
type Validation int

const (
	Valid Validation = iota
	MissingCredential
	MissingText
)

func (v Validation) String() string {
	switch v {
	case Valid:
		return "valid"
	case MissingCredential:
		return "missing_credential"
	case MissingText:
		return "missing_text"
	default:
		return "unknown"
	}
}

// Validate checks that both a credential and a non-blank abstract are present.
// Only presence is checked: a whitespace-only credential is passed on and
// left to the provider to reject. Text is checked first so blank input is
// always MissingText.
func Validate(credential, text string) Validation {
	if strings.TrimSpace(text) == "" {
		return MissingText
	}

	if credential == "" {
		return MissingCredential
	}

	return Valid
}
