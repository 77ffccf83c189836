package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, s.System("default_host"))
	got := s.User("podcast", map[string]string{"title": "T", "content": "C"})
	require.Contains(t, got, "T")
	require.Contains(t, got, "C")
}

func TestLoadParsesTemplates(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	data := `llm:
  default_host: "you are a host"
  concise_host: "be brief"
user_templates:
  podcast: "Title: {title}; Body: {content}"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "be brief", s.System("concise_host"))
	// unknown style falls back to default_host
	require.Equal(t, "you are a host", s.System("academic_host"))
	got := s.User("podcast", map[string]string{"title": "A", "content": "B"})
	require.Equal(t, "Title: A; Body: B", got)
}
