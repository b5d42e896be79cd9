//go:build opencv

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCVBackend(t *testing.T) {
	config := Config{Backend: BackendOpenCV}
	require.NoError(t, verifyConfig(&config))

	backend, err := NewBackend(&config)
	require.NoError(t, err)
	assert.Equal(t, BackendOpenCV, backend.Name)
	assert.NotNil(t, backend.Sources)
	assert.NotNil(t, backend.Sinks)
	assert.NotNil(t, flowEstimator())
}
