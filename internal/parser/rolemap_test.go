package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wesm/braindump/internal/session"
)

func TestNormalizeRole(t *testing.T) {
	cases := map[string]session.Role{
		"model":     session.RoleAssistant,
		"assistant": session.RoleAssistant,
		"human":     session.RoleUser,
		"user":      session.RoleUser,
		"system":    session.RoleSystem,
		"tool":      session.RoleTool,
		"narrator":  session.RoleAssistant,
		"":          session.RoleAssistant,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeRole(raw), "raw=%q", raw)
	}
}
