package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptFile is the YAML layout of a prompts file:
//
//	agents:
//	  chat:
//	    system: You are a friendly fitness coach...
//	    user: |
//	      Reply to the message below.
type PromptFile struct {
	Agents map[string]Prompts `yaml:"agents"`
}

// LoadPromptsYAML decodes a prompts file.
func LoadPromptsYAML(r io.Reader) (map[string]Prompts, error) {
	var f PromptFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return map[string]Prompts{}, nil
		}
		return nil, fmt.Errorf("failed to decode prompts: %w", err)
	}
	for name, p := range f.Agents {
		if p.System == "" {
			return nil, fmt.Errorf("prompts for agent %q have no system prompt", name)
		}
	}
	if f.Agents == nil {
		f.Agents = map[string]Prompts{}
	}
	return f.Agents, nil
}

// LoadPromptsFile reads a prompts file from disk.
func LoadPromptsFile(path string) (map[string]Prompts, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return LoadPromptsYAML(fd)
}

// StaticPrompts serves prompts from a fixed map.
type StaticPrompts map[string]Prompts

func (s StaticPrompts) GetPrompts(_ context.Context, agent string) (Prompts, error) {
	p, ok := s[agent]
	if !ok {
		return Prompts{}, fmt.Errorf("prompts for agent %q: %w", agent, ErrNotFound)
	}
	return p, nil
}
