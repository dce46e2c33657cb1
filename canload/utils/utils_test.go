package utils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv(t *testing.T) {
	const key = "TEST_CANLOAD_FROM_ENV"
	assert.NoError(t, os.Unsetenv(key))
	assert.Equal(t, "fallback", FromEnv(key, "fallback"))

	assert.NoError(t, os.Setenv(key, "present"))
	defer os.Unsetenv(key)
	assert.Equal(t, "present", FromEnv(key, "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	const key = "TEST_CANLOAD_ENV_INT"
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"unset", "", 42},
		{"valid", "17", 17},
		{"invalid", "seventeen", 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				assert.NoError(t, os.Unsetenv(key))
			} else {
				assert.NoError(t, os.Setenv(key, tt.value))
				defer os.Unsetenv(key)
			}
			assert.Equal(t, tt.expected, GetEnvInt(key, 42))
		})
	}
}
