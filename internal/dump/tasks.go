package dump

import (
	"fmt"

	"github.com/CentOS/ansible-role-kojibot/internal/koji"
)

// Declarative modules the synthesized tasks target.
const (
	ModuleTag    = "koji_tag"
	ModuleTarget = "koji_target"
)

// Task is one named unit of desired-state output: a human-readable name and
// the canonical payload for its declarative module. Tasks keep entity
// retrieval order; the synthesizer never re-sorts.
type Task struct {
	Name    string
	Module  string
	Payload map[string]any
}

// tagTask wraps a canonical tag payload.
func tagTask(name string, payload map[string]any) Task {
	return Task{
		Name:    fmt.Sprintf("tag %s", name),
		Module:  ModuleTag,
		Payload: payload,
	}
}

// targetTask builds a target task. Targets carry no sub-queries; only the
// name and the two tag references survive into the payload.
func targetTask(rec koji.Record) (Task, error) {
	name, err := stringField(rec, "name")
	if err != nil {
		return Task{}, fmt.Errorf("build target: %w", err)
	}
	buildTag, err := stringField(rec, "build_tag_name")
	if err != nil {
		return Task{}, fmt.Errorf("build target %s: %w", name, err)
	}
	destTag, err := stringField(rec, "dest_tag_name")
	if err != nil {
		return Task{}, fmt.Errorf("build target %s: %w", name, err)
	}

	return Task{
		Name:   fmt.Sprintf("target %s", name),
		Module: ModuleTarget,
		Payload: cleanRecord(map[string]any{
			"name":      name,
			"build_tag": buildTag,
			"dest_tag":  destTag,
		}),
	}, nil
}
