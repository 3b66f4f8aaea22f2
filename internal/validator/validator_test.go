package validator

import (
	"errors"
	"testing"

	"github.com/stemsi/assessment-session/internal/model"
)

func TestStructReportsMissingFieldsByJSONName(t *testing.T) {
	fields := Struct(&model.RegistrationRequest{})
	if fields == nil {
		t.Fatal("expected validation errors")
	}
	for _, name := range []string{"candidate_email", "codeforces_username"} {
		if fields[name] == "" {
			t.Fatalf("expected error for %s, got %v", name, fields)
		}
	}
}

func TestStructAcceptsValidRequest(t *testing.T) {
	req := &model.RegistrationRequest{CandidateEmail: "a@b.com", JudgeUsername: "abc"}
	if fields := Struct(req); fields != nil {
		t.Fatalf("expected no errors, got %v", fields)
	}
}

func TestMalformedSeparatesDecodeErrors(t *testing.T) {
	if !Malformed(TranslateErrors(errors.New("unexpected EOF"))) {
		t.Fatal("expected decode error to be malformed")
	}
	if Malformed(Struct(&model.RegistrationRequest{})) {
		t.Fatal("expected rule failures not to be malformed")
	}
}
