package classifier

import (
	"errors"
	"fmt"
)

const (
	ErrorPrefix    = "Error:"
	CategoryPrefix = "Category:"

	missingTextMessage       = "Please paste an abstract into the text box."
	missingCredentialMessage = "The API key is missing. Please provide one or configure it on the server."
)

// Kind is the closed set of ways a classification can end.
type Kind int

const (
	KindNone Kind = iota
	KindMissingCredential
	KindMissingText
	KindConfiguration
	KindProviderCall
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return ""
	case KindMissingCredential:
		return "missing_credential"
	case KindMissingText:
		return "missing_text"
	case KindConfiguration:
		return "configuration_failure"
	case KindProviderCall:
		return "provider_call_failure"
	default:
		return "unknown"
	}
}

var (
	ErrNoProvider    = errors.New("provider is not configured")
	ErrEmptyResponse = errors.New("provider returned no output")
)

// Error tags a provider failure with its Kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ConfigurationError marks err as a failure to set up the provider client,
// including the provider rejecting the credential.
func ConfigurationError(err error) error {
	return &Error{Kind: KindConfiguration, Err: err}
}

// CallError marks err as a failure of the generation request itself.
func CallError(err error) error {
	return &Error{Kind: KindProviderCall, Err: err}
}

// KindOf reports the Kind carried by err. Untagged errors are provider call
// failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindProviderCall
}

// Outcome is either a category returned by the provider or a failure message.
type Outcome struct {
	Category string
	Kind     Kind
	Message  string
}

func Success(category string) Outcome {
	return Outcome{Category: category}
}

func Failure(kind Kind, message string) Outcome {
	return Outcome{Kind: kind, Message: message}
}

func (o Outcome) OK() bool {
	return o.Kind == KindNone
}

// Rejected reports whether the outcome came from the input gate, so no
// provider call was made.
func (o Outcome) Rejected() bool {
	return o.Kind == KindMissingCredential || o.Kind == KindMissingText
}

func (o Outcome) String() string {
	if o.OK() {
		return CategoryPrefix + " " + o.Category
	}
	return o.Message
}

func rejection(v Validation) Outcome {
	if v == MissingCredential {
		return Failure(KindMissingCredential, missingCredentialMessage)
	}
	return Failure(KindMissingText, missingTextMessage)
}

func failure(err error) Outcome {
	kind := KindOf(err)

	if kind == KindConfiguration {
		return Failure(kind, fmt.Sprintf("%s Could not configure the AI model. Details: %v", ErrorPrefix, err))
	}

	return Failure(KindProviderCall, fmt.Sprintf("%s Could not contact the AI model. Details: %v", ErrorPrefix, err))
}
