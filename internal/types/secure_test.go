package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

const testSecret = "owm-secret-api-key-12345"

func TestSecretString_Redaction(t *testing.T) {
	s := SecretString(testSecret)

	for _, format := range []string{"%s", "%v"} {
		result := fmt.Sprintf("key="+format, s)
		if strings.Contains(result, testSecret) {
			t.Errorf("fmt.Sprintf(%s) leaked the raw secret: %s", format, result)
		}
	}

	data, err := json.Marshal(struct {
		Key SecretString `json:"key"`
	}{Key: s})
	if err != nil {
		t.Fatalf("json.Marshal returned error: %v", err)
	}
	if strings.Contains(string(data), testSecret) {
		t.Errorf("JSON leaked the raw secret: %s", data)
	}
	if string(data) != `{"key":"***REDACTED***"}` {
		t.Errorf("json = %s", data)
	}
}

func TestSecretString_Unmask(t *testing.T) {
	s := SecretString(testSecret)
	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q, want %q", s.Unmask(), testSecret)
	}
}

func TestSecretString_IsSet(t *testing.T) {
	if SecretString("").IsSet() {
		t.Error("empty secret should not be set")
	}
	if !SecretString("x").IsSet() {
		t.Error("non-empty secret should be set")
	}
}
