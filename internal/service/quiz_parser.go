package service

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
)

// ParseQuestionsJSON reads a JSON array of questions and validates each one.
func ParseQuestionsJSON(r io.Reader) ([]Question, error) {
	var questions []Question
	if err := json.NewDecoder(r).Decode(&questions); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, newError(ErrorInvalidQuestion, "malformed json", err)
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, newError(ErrorInvalidQuestion, fmt.Sprintf("question %d", i), err)
		}
	}
	return questions, nil
}

// ParseQuestionsText reads one question per line:
//
//	"prompt" <correct-index> option1 | option2 | option3
//
// Blank lines and lines starting with # are skipped.
func ParseQuestionsText(r io.Reader) ([]Question, error) {
	var questions []Question
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		q, err := parseQuestionLine(line)
		if err != nil {
			return nil, newError(ErrorInvalidQuestion, fmt.Sprintf("line %d", lineNo), err)
		}
		questions = append(questions, q)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading questions: %w", err)
	}
	return questions, nil
}

func parseQuestionLine(line string) (Question, error) {
	if !strings.HasPrefix(line, `"`) {
		return Question{}, fmt.Errorf("invalid format: question must be quoted")
	}
	quoteEnd := strings.Index(line[1:], `"`) + 1
	if quoteEnd <= 0 {
		return Question{}, fmt.Errorf("invalid format: no closing quote")
	}

	prompt := line[1:quoteEnd]
	remaining := strings.TrimSpace(line[quoteEnd+1:])

	digits := strings.IndexFunc(remaining, func(r rune) bool { return !unicode.IsDigit(r) })
	if digits == -1 {
		digits = len(remaining)
	}
	if digits == 0 {
		return Question{}, fmt.Errorf("no correct option index found")
	}
	correct, err := strconv.Atoi(remaining[:digits])
	if err != nil {
		return Question{}, fmt.Errorf("invalid correct option index: %w", err)
	}

	var options []string
	for _, opt := range strings.Split(remaining[digits:], "|") {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}
	if correct >= len(options) {
		return Question{}, fmt.Errorf("correct option index %d out of range, got %d options", correct, len(options))
	}

	q := Question{Prompt: prompt, Options: options, Correct: options[correct]}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}
