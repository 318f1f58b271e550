package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"runbook/internal/models"
)

// Store persists workflow definitions on disk: one directory per
// workflow holding config.yaml for metadata and workflow.sh or
// workflow.py for code. Both are always loaded together as one unit.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workflow directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) workflowDir(name string) string {
	return filepath.Join(s.baseDir, name)
}

func (s *Store) configPath(name string) string {
	return filepath.Join(s.workflowDir(name), "config.yaml")
}

func (s *Store) codePath(name string, language models.Language) string {
	return filepath.Join(s.workflowDir(name), "workflow."+language.Ext())
}

func (s *Store) notesPath(name string) string {
	return filepath.Join(s.workflowDir(name), "NOTES.md")
}

func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.configPath(name))
	return err == nil
}

// Save writes the workflow to disk. Overwriting an existing workflow
// bumps the version counter; timestamps are managed here, not by the
// caller.
func (s *Store) Save(wf *models.Workflow) error {
	if wf.Name == "" {
		return fmt.Errorf("workflow must have a name")
	}
	if _, ok := models.ParseLanguage(string(wf.Language)); !ok {
		return fmt.Errorf("unsupported language: %s", wf.Language)
	}

	now := time.Now()
	if s.Exists(wf.Name) {
		prev, err := s.Load(wf.Name)
		if err != nil {
			return err
		}
		wf.CreatedAt = prev.CreatedAt
		wf.Version = prev.Version + 1
	} else {
		wf.CreatedAt = now
		wf.Version = 1
	}
	wf.UpdatedAt = now
	if wf.Timeout <= 0 {
		wf.Timeout = 300
	}

	if err := os.MkdirAll(s.workflowDir(wf.Name), 0755); err != nil {
		return fmt.Errorf("failed to create workflow directory: %w", err)
	}

	data, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow config: %w", err)
	}
	if err := os.WriteFile(s.configPath(wf.Name), data, 0644); err != nil {
		return fmt.Errorf("failed to write workflow config: %w", err)
	}

	// Bash scripts are executable on disk.
	mode := os.FileMode(0644)
	if wf.Language == models.LanguageBash {
		mode = 0755
	}
	if err := os.WriteFile(s.codePath(wf.Name, wf.Language), []byte(wf.Code), mode); err != nil {
		return fmt.Errorf("failed to write workflow code: %w", err)
	}

	// Seed the notes file on first save only.
	notes := s.notesPath(wf.Name)
	if _, err := os.Stat(notes); os.IsNotExist(err) {
		seed := fmt.Sprintf("# Workflow: %s\n\n%s\n\n## Execution History\n\n", wf.Name, wf.Description)
		if err := os.WriteFile(notes, []byte(seed), 0644); err != nil {
			return fmt.Errorf("failed to write workflow notes: %w", err)
		}
	}

	return nil
}

// Load reads a workflow back; it returns (nil, nil) when the workflow
// does not exist.
func (s *Store) Load(name string) (*models.Workflow, error) {
	if !s.Exists(name) {
		return nil, nil
	}

	data, err := os.ReadFile(s.configPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow config: %w", err)
	}

	var wf models.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workflow config: %w", err)
	}

	code, err := os.ReadFile(s.codePath(name, wf.Language))
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow code: %w", err)
	}
	wf.Code = string(code)

	return &wf, nil
}

// List returns all workflow names, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() && s.Exists(entry.Name()) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)
	return names, nil
}

// Delete removes a workflow and reports whether it existed.
func (s *Store) Delete(name string) (bool, error) {
	if !s.Exists(name) {
		return false, nil
	}
	if err := os.RemoveAll(s.workflowDir(name)); err != nil {
		return false, err
	}
	return true, nil
}

// AppendNotes adds a line to the workflow's notes file.
func (s *Store) AppendNotes(name, content string) error {
	f, err := os.OpenFile(s.notesPath(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.WriteString("\n" + content + "\n")
	return err
}

// Notes reads the workflow's notes file; empty when absent.
func (s *Store) Notes(name string) (string, error) {
	data, err := os.ReadFile(s.notesPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
