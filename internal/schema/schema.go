// Package schema validates a captured session against the
// invariants of the canonical record before it is treated as
// immutable by downstream consumers. Grounded on the teacher's
// validation-by-construction approach in internal/db (needsRebuild's
// schema-version probing before trusting a database file).
package schema

import (
	"fmt"

	"github.com/wesm/braindump/internal/braindumperr"
	"github.com/wesm/braindump/internal/session"
)

// Validate enforces every invariant in the data model: schema
// version, known source agent, message-count consistency, unique
// file-change paths, closed message roles, field-length caps, and
// deduplicated decisions/remaining-task entries with no blanks.
func Validate(cs *session.Captured) error {
	if cs == nil {
		return fmt.Errorf("%w: nil captured session", braindumperr.ErrSchemaInvalid)
	}
	if cs.Version != session.SchemaVersion {
		return fmt.Errorf(
			"%w: unsupported version %q", braindumperr.ErrSchemaInvalid, cs.Version,
		)
	}
	if !cs.Source.Valid() {
		return fmt.Errorf(
			"%w: unknown source agent %q", braindumperr.ErrSchemaInvalid, cs.Source,
		)
	}
	if cs.Conversation.MessageCount != len(cs.Conversation.Messages) {
		return fmt.Errorf(
			"%w: messageCount %d does not match %d messages",
			braindumperr.ErrSchemaInvalid,
			cs.Conversation.MessageCount, len(cs.Conversation.Messages),
		)
	}
	if err := validateRoles(cs.Conversation.Messages); err != nil {
		return err
	}
	if err := validateFileChanges(cs.FileChanges); err != nil {
		return err
	}
	if len(cs.Task.InProgress) > 200 {
		return fmt.Errorf(
			"%w: task.inProgress exceeds 200 characters", braindumperr.ErrSchemaInvalid,
		)
	}
	if len(cs.Project.Memory) > 2000 {
		return fmt.Errorf(
			"%w: project.memory exceeds 2000 characters", braindumperr.ErrSchemaInvalid,
		)
	}
	if dup(cs.Decisions) {
		return fmt.Errorf(
			"%w: decisions are not deduplicated", braindumperr.ErrSchemaInvalid,
		)
	}
	if dup(cs.Task.Remaining) {
		return fmt.Errorf(
			"%w: remaining tasks are not deduplicated", braindumperr.ErrSchemaInvalid,
		)
	}
	return nil
}

// dup reports whether ss contains a blank entry or a duplicate,
// per §3's "decisions and remaining-task entries are deduplicated,
// blank entries discarded" invariant.
func dup(ss []string) bool {
	seen := make(map[string]bool, len(ss))
	for _, s := range ss {
		if s == "" {
			return true
		}
		if seen[s] {
			return true
		}
		seen[s] = true
	}
	return false
}

func validateRoles(messages []session.Message) error {
	for i, m := range messages {
		switch m.Role {
		case session.RoleUser, session.RoleAssistant, session.RoleSystem, session.RoleTool:
		default:
			return fmt.Errorf(
				"%w: message %d has unknown role %q",
				braindumperr.ErrSchemaInvalid, i, m.Role,
			)
		}
	}
	return nil
}

func validateFileChanges(changes []session.FileChange) error {
	seen := make(map[string]bool, len(changes))
	for _, fc := range changes {
		if fc.Path == "" {
			return fmt.Errorf(
				"%w: file change has empty path", braindumperr.ErrSchemaInvalid,
			)
		}
		if seen[fc.Path] {
			return fmt.Errorf(
				"%w: duplicate file change path %q", braindumperr.ErrSchemaInvalid, fc.Path,
			)
		}
		seen[fc.Path] = true
	}
	return nil
}
