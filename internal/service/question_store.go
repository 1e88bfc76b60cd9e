package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileQuestionStore reads questions from disk on every Load. Files ending in
// .txt use the line format, anything else is parsed as JSON. A missing file
// is an empty set.
type FileQuestionStore struct {
	path string
}

func NewFileQuestionStore(path string) *FileQuestionStore {
	return &FileQuestionStore{path: path}
}

func (s *FileQuestionStore) Path() string {
	return s.path
}

func (s *FileQuestionStore) Load(ctx context.Context) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(s.path), ".txt") {
		return ParseQuestionsText(file)
	}
	return ParseQuestionsJSON(file)
}
