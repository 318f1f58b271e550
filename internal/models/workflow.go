package models

import "time"

type Language string

const (
	LanguageBash   Language = "bash"
	LanguagePython Language = "python"
)

// ParseLanguage validates a language tag from user input or a config file.
func ParseLanguage(s string) (Language, bool) {
	switch Language(s) {
	case LanguageBash, LanguagePython:
		return Language(s), true
	}
	return "", false
}

// Ext returns the source file extension for the language.
func (l Language) Ext() string {
	if l == LanguagePython {
		return "py"
	}
	return "sh"
}

// Workflow is a named, stored script plus its execution metadata.
// Code and config live in separate files on disk but are always
// loaded together as one unit.
type Workflow struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Language    Language          `yaml:"language"`
	Code        string            `yaml:"-"`
	Timeout     int               `yaml:"timeout"` // seconds
	Tags        []string          `yaml:"tags,omitempty"`
	EnvVars     map[string]string `yaml:"env_vars,omitempty"`
	CreatedAt   time.Time         `yaml:"created_at"`
	UpdatedAt   time.Time         `yaml:"updated_at"`
	Version     int               `yaml:"version"`
}
