package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedTaskColumn(t *testing.T) {
	allowed := []string{"plan", "architecture", "code_diff", "test_report", "review", "deploy_report"}
	for _, c := range allowed {
		assert.True(t, allowedTaskColumn(c), "column %q should be allowed", c)
	}

	disallowed := []string{"", "status", "id; DROP TABLE tasks", "trace_id"}
	for _, c := range disallowed {
		assert.False(t, allowedTaskColumn(c), "column %q should not be allowed", c)
	}
}
