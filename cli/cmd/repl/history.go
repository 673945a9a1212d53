package repl

import (
	"bufio"
	"os"
	"strings"
	"sync"
)

const baseHistory = "history.utf8"

// History manages session input history with file persistence. Entries are
// stored one per line, oldest first.
type History struct {
	path    string
	entries []string
	mu      sync.RWMutex
}

// NewHistory creates a History backed by the given file path.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Load reads the history file. A missing file is not an error.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return err
	}
	defer file.Close()

	h.entries = nil

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		h.entries = append(h.entries, line)
	}

	return scanner.Err()
}

// Write appends a new entry, dropping any earlier duplicate so the most
// recent use of a line is the one recalled first.
func (h *History) Write(entry string) (int, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return 0, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.entries); n > 0 && h.entries[n-1] == entry {
		return len(entry), nil
	}

	rewrite := false

	for i, line := range h.entries {
		if line == entry {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			rewrite = true

			break
		}
	}

	h.entries = append(h.entries, entry)

	if rewrite {
		return h.rewriteFile()
	}

	file, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return file.WriteString(entry + "\n")
}

// GetLine retrieves a historic line by index. Index 0 is the oldest entry.
func (h *History) GetLine(i int) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i < 0 || i >= len(h.entries) {
		return "", ErrOutOfBounds
	}

	return h.entries[i], nil
}

// Len returns the number of history entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.entries)
}

// rewriteFile rewrites the entire history file with current entries.
// Must be called with h.mu held.
func (h *History) rewriteFile() (int, error) {
	file, err := os.OpenFile(h.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	total := 0

	for _, line := range h.entries {
		n, err := file.WriteString(line + "\n")
		if err != nil {
			return total, err
		}

		total += n
	}

	return total, nil
}
