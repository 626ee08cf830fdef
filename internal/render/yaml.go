// Package render serializes the synthesized task list as a playbook-style
// YAML document. It carries no pipeline logic: tasks arrive fully shaped and
// ordered, and are written out as-is.
package render

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/CentOS/ansible-role-kojibot/internal/dump"
)

// Document writes tasks as a YAML sequence, one entry per task, preserving
// task order. Payload keys are emitted in sorted order so repeated runs
// against an unchanged hub produce byte-identical documents.
func Document(w io.Writer, tasks []dump.Task) error {
	root := &yaml.Node{Kind: yaml.SequenceNode}
	for _, task := range tasks {
		node, err := taskNode(task)
		if err != nil {
			return fmt.Errorf("rendering task %q: %w", task.Name, err)
		}
		root.Content = append(root.Content, node)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	return enc.Close()
}

// taskNode lays one task out as {name, <module>: payload}, name first.
func taskNode(task dump.Task) (*yaml.Node, error) {
	var payload yaml.Node
	if err := payload.Encode(task.Payload); err != nil {
		return nil, err
	}

	return &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			scalar("name"), scalar(task.Name),
			scalar(task.Module), &payload,
		},
	}, nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
}
