package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCandidateData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/public/invites/:token/results"),
		attribute.String("invite_token", "secret"),
		attribute.String("Candidate_Email", "a@b.c"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	base := errors.New("invite_gone")
	safe := SafeError(fmt.Errorf("submit: %w", base))
	assert.EqualError(t, safe, "submit: invite_gone")
	assert.False(t, errors.Is(safe, base))
}
