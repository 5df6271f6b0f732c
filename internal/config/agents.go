package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Agent struct {
	Phone       string `yaml:"phone"`
	Name        string `yaml:"name"`
	ID          string `yaml:"id"`
	AssistantID string `yaml:"assistant_id"`
}

type AgentsFile struct {
	BotNumber string  `yaml:"bot_number"`
	Agents    []Agent `yaml:"agents"`
}

func LoadAgentsFile(path string) (*AgentsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var f AgentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse agents file %s: %w", path, err)
	}
	for i, a := range f.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("agents file %s: entry %d has no id", path, i)
		}
		if f.Agents[i].Name == "" {
			f.Agents[i].Name = a.ID
		}
	}
	return &f, nil
}
