package pkg

import (
	"os"
	"strings"
	"testing"
)

func TestName(t *testing.T) {
	expected := "pyt"
	if Name != expected {
		t.Errorf("Expected Name to be %q, got %q", expected, Name)
	}
}

func TestDescription(t *testing.T) {
	expected := "Text templating transpiler"
	if Description != expected {
		t.Errorf("Expected Description to be %q, got %q", expected, Description)
	}
}

func TestVersion(t *testing.T) {
	// Version is embedded from VERSION file, so it should not be empty.
	buf, err := os.ReadFile("VERSION")
	if err != nil {
		t.Fatalf("Failed to read VERSION file: %v", err)
	}

	if content := strings.TrimSpace(string(buf)); strings.TrimSpace(Version) != content {
		t.Errorf("Expected Version to be %q, got %q", content, Version)
	}
}

func TestAuthor(t *testing.T) {
	if len(Author) == 0 {
		t.Error("Expected Author to have at least one entry")
	}

	for i, author := range Author {
		if author.Name == "" && author.Email == "" {
			t.Errorf("Author[%d] must define at least Name or Email", i)
		}
	}
}

func TestPrefix(t *testing.T) {
	prefix := Prefix()
	if prefix == "" {
		t.Error("Expected non-empty prefix")
	}
	if strings.HasPrefix(prefix, ".") {
		t.Errorf("Expected prefix without leading dot, got %q", prefix)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("Expected non-empty config dir")
	}
	if !strings.HasSuffix(dir, Prefix()) {
		t.Errorf("Expected config dir to end with prefix %q, got %q", Prefix(), dir)
	}
}
