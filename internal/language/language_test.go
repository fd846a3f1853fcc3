package language

import "testing"

func TestDetectScriptHindi(t *testing.T) {
	code, confidence := Detect("मशीन को कैसे रीसेट करें")
	if code != "hi" {
		t.Fatalf("expected hi, got %s", code)
	}
	if confidence < DetectionFloor {
		t.Fatalf("expected confidence >= %f, got %f", DetectionFloor, confidence)
	}
}

func TestDetectStopwordEnglish(t *testing.T) {
	code, _ := Detect("the operating voltage of the machine is very important for this procedure")
	if code != "en" {
		t.Fatalf("expected en, got %s", code)
	}
}

func TestDetectEmptyTextDefaultsEnglishZeroConfidence(t *testing.T) {
	code, confidence := Detect("")
	if code != "en" || confidence != 0 {
		t.Fatalf("expected en/0, got %s/%f", code, confidence)
	}
}

func TestSupportedContainsEnglish(t *testing.T) {
	found := false
	for _, l := range Supported() {
		if l.Code == "en" {
			found = true
			if l.Name == "" {
				t.Fatalf("expected non-empty display name for en")
			}
		}
	}
	if !found {
		t.Fatalf("expected en in supported set")
	}
}

type stubTranslator struct {
	err error
}

func (s stubTranslator) Translate(text, src, dst string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "translated:" + text, nil
}

func TestTranslateDisabledReturnsOriginal(t *testing.T) {
	svc := New(stubTranslator{}, false)
	out, err := svc.Translate("hello", "en", "hi")
	if err != nil || out != "hello" {
		t.Fatalf("expected passthrough, got %q, %v", out, err)
	}
}

func TestTranslateFailureIsNonFatal(t *testing.T) {
	svc := New(stubTranslator{err: errTest}, true)
	out, err := svc.Translate("hello", "en", "hi")
	if out != "hello" {
		t.Fatalf("expected original text preserved on failure, got %q", out)
	}
	if err == nil {
		t.Fatalf("expected a non-nil TranslationFailure to be returned for the caller to record")
	}
}

var errTest = testErr("boom")

type testErr string

func (e testErr) Error() string { return string(e) }
