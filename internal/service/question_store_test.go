package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileQuestionStore_Missing(t *testing.T) {
	store := NewFileQuestionStore(filepath.Join(t.TempDir(), "questions.json"))

	questions, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, questions)
}

func TestFileQuestionStore_JSON(t *testing.T) {
	path := writeFile(t, "questions.json", `[
		{"question": "What is 3 / 2 in Python 3?", "options": ["1", "1.5"], "correct": "1.5"}
	]`)
	store := NewFileQuestionStore(path)

	questions, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Question{
		{Prompt: "What is 3 / 2 in Python 3?", Options: []string{"1", "1.5"}, Correct: "1.5"},
	}, questions)
}

func TestFileQuestionStore_SeesEdits(t *testing.T) {
	path := writeFile(t, "questions.json", `[{"question": "a", "options": ["x", "y"], "correct": "x"}]`)
	store := NewFileQuestionStore(path)

	questions, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 1)

	require.NoError(t, os.WriteFile(path, []byte(`[]`), 0o644))
	questions, err = store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, questions)
}

func TestFileQuestionStore_EmptyFile(t *testing.T) {
	store := NewFileQuestionStore(writeFile(t, "questions.json", ""))

	questions, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, questions)
}

func TestFileQuestionStore_InvalidJSON(t *testing.T) {
	tests := map[string]string{
		"malformed":      `[{"question": `,
		"correct absent": `[{"question": "q", "options": ["a", "b"], "correct": "c"}]`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			store := NewFileQuestionStore(writeFile(t, "questions.json", content))
			_, err := store.Load(context.Background())
			require.ErrorIs(t, err, ErrInvalidQuestion)
		})
	}
}

func TestFileQuestionStore_Text(t *testing.T) {
	path := writeFile(t, "questions.txt", strings.Join([]string{
		`# capitals`,
		``,
		`"Capital of France?" 1 Berlin | Paris | Rome`,
		`"Is Go compiled?" 0 yes | no`,
	}, "\n"))
	store := NewFileQuestionStore(path)

	questions, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []Question{
		{Prompt: "Capital of France?", Options: []string{"Berlin", "Paris", "Rome"}, Correct: "Paris"},
		{Prompt: "Is Go compiled?", Options: []string{"yes", "no"}, Correct: "yes"},
	}, questions)
}

func TestParseQuestionsText_Errors(t *testing.T) {
	tests := map[string]string{
		"unquoted":        `Capital? 0 a | b`,
		"no closing":      `"Capital? 0 a | b`,
		"no index":        `"Capital?" a | b`,
		"index too large": `"Capital?" 2 a | b`,
		"single option":   `"Capital?" 0 a`,
		"empty prompt":    `"" 0 a | b`,
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseQuestionsText(strings.NewReader(line))
			require.ErrorIs(t, err, ErrInvalidQuestion)
		})
	}
}

func TestFileQuestionStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileQuestionStore("questions.json").Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
