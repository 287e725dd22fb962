package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "query.json")
	assert.NoError(t, os.WriteFile(file, []byte("{}"), 0600))

	assert.NoError(t, ValidateInputFile(file))
	assert.Error(t, ValidateInputFile(""))
	assert.Error(t, ValidateInputFile(dir))
	assert.Error(t, ValidateInputFile(filepath.Join(dir, "missing.json")))
}

func TestValidateOutputFile(t *testing.T) {
	dir := t.TempDir()

	nested := filepath.Join(dir, "a", "b", "out.md")
	assert.NoError(t, ValidateOutputFile(nested))
	_, err := os.Stat(filepath.Dir(nested))
	assert.NoError(t, err, "directory should be created")

	assert.Error(t, ValidateOutputFile(dir))
	assert.NoError(t, ValidateOutputFile(""))
}

func TestIsQueryFile(t *testing.T) {
	tests := map[string]bool{
		"q.json": true,
		"q.YAML": true,
		"q.yml":  true,
		"q.toml": true,
		"q.txt":  false,
		"query":  false,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			if got := IsQueryFile(name); got != want {
				t.Errorf("Expected %v, got %v", want, got)
			}
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatFileSize(512))
	assert.Equal(t, "1.0 KB", FormatFileSize(1024))
	assert.Equal(t, "10.0 MB", FormatFileSize(10*1024*1024))
}
