package probe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcome_Valid(t *testing.T) {
	assert.True(t, OutcomePass.Valid())
	assert.True(t, OutcomeFail.Valid())
	assert.True(t, OutcomeError.Valid())
	assert.False(t, Outcome("").Valid())
	assert.False(t, Outcome("PASS").Valid())
}

func TestOutcome_Label(t *testing.T) {
	assert.Equal(t, "PASS", OutcomePass.Label())
	assert.Equal(t, "FAIL", OutcomeFail.Label())
	assert.Equal(t, "ERROR", OutcomeError.Label())
	assert.Equal(t, "UNKNOWN", Outcome("maybe").Label())
}

func TestFromError(t *testing.T) {
	base := errors.New("connection refused")
	res := FromError(fmt.Errorf("GET https://example.com: %w", base), "GET https://example.com")

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Equal(t, "GET https://example.com: connection refused", res.Summary)
	assert.Equal(t, "cause: connection refused", res.Detail)
	assert.Equal(t, "GET https://example.com", res.Trace)

	assert.Equal(t, "unknown error", FromError(nil, "").Summary)
}

func TestWithIdentity_DoesNotModifyOriginal(t *testing.T) {
	orig := Fail("missing header", "", "")
	stamped := orig.WithIdentity(Descriptor{ID: "security-headers", DisplayName: "Security Headers"})

	assert.Equal(t, "security-headers", stamped.ProbeID)
	assert.Equal(t, "Security Headers", stamped.DisplayName)
	assert.Empty(t, orig.ProbeID)
	assert.True(t, stamped.IsFail())
	assert.False(t, stamped.IsPass())
	assert.False(t, stamped.IsError())
}
