package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

func TestTracingResource(t *testing.T) {
	res := tracingResource("owsetup", "staging")

	name, ok := res.Set().Value(semconv.ServiceNameKey)
	assert.True(t, ok)
	assert.Equal(t, "owsetup", name.AsString())

	env, ok := res.Set().Value(semconv.DeploymentEnvironmentKey)
	assert.True(t, ok)
	assert.Equal(t, "staging", env.AsString())

	version, ok := res.Set().Value(semconv.ServiceVersionKey)
	assert.True(t, ok)
	assert.NotEmpty(t, version.AsString())
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", samplerFor(1).Description())
	assert.Equal(t, "AlwaysOnSampler", samplerFor(2).Description())
	assert.Equal(t, "AlwaysOffSampler", samplerFor(0).Description())
	assert.Equal(t, "TraceIDRatioBased{0.25}", samplerFor(0.25).Description())
}
