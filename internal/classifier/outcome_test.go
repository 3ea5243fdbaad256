package classifier

import (
	"errors"
	"strings"
	"testing"
)

func TestRejectionMessages(t *testing.T) {
	text := rejection(MissingText)
	if text.Kind != KindMissingText || text.Message != missingTextMessage {
		t.Fatalf("unexpected missing text outcome: %+v", text)
	}

	cred := rejection(MissingCredential)
	if cred.Kind != KindMissingCredential || !cred.Rejected() {
		t.Fatalf("unexpected missing credential outcome: %+v", cred)
	}
}

func TestFailureMessagePrefix(t *testing.T) {
	for _, err := range []error{
		errors.New("plain"),
		CallError(errors.New("status 500")),
		ConfigurationError(errors.New("status 401")),
	} {
		outcome := failure(err)
		if !strings.HasPrefix(outcome.Message, ErrorPrefix+" ") {
			t.Fatalf("expected %q prefix, got %q", ErrorPrefix, outcome.Message)
		}

		if outcome.OK() || outcome.Rejected() {
			t.Fatalf("expected provider failure, got %+v", outcome)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindNone.String() != "" {
		t.Fatalf("expected empty string for KindNone")
	}

	if KindConfiguration.String() != "configuration_failure" {
		t.Fatalf("unexpected kind string: %q", KindConfiguration.String())
	}
}
