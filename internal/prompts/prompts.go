// Package prompts loads the LLM prompt templates from a YAML file.
//
// The store is immutable after Load; callers share one instance.
package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = "You are a podcast host. Rewrite the article " +
	"into a natural spoken-language script, keeping the key facts and " +
	"dropping navigation text, ads and references."

const defaultUserTemplate = "请将以下文章转换为播客脚本：\n\n标题：{title}\n\n内容：{content}"

type file struct {
	LLM           map[string]string `yaml:"llm"`
	UserTemplates map[string]string `yaml:"user_templates"`
}

// Store holds the parsed prompt templates.
type Store struct {
	system    map[string]string
	templates map[string]string
}

// Load reads templates from path. A missing file yields built-in defaults.
func Load(path string) (*Store, error) {
	s := &Store{
		system:    map[string]string{},
		templates: map[string]string{},
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("op=prompts.Load: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("op=prompts.Load: parse %s: %w", path, err)
	}
	if f.LLM != nil {
		s.system = f.LLM
	}
	if f.UserTemplates != nil {
		s.templates = f.UserTemplates
	}
	return s, nil
}

// System returns the system prompt for the given host style, falling back
// to default_host and then the built-in default.
func (s *Store) System(style string) string {
	if p, ok := s.system[style]; ok && p != "" {
		return p
	}
	if p, ok := s.system["default_host"]; ok && p != "" {
		return p
	}
	return defaultSystemPrompt
}

// User formats the named user template, substituting {key} placeholders.
func (s *Store) User(templateKey string, vars map[string]string) string {
	tpl, ok := s.templates[templateKey]
	if !ok || tpl == "" {
		tpl = defaultUserTemplate
	}
	out := tpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
