package service

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"
)

type Question struct {
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
	Correct string   `json:"correct"`
}

// Validate checks what grading relies on: a prompt, at least two
// options and a correct option that is one of them.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("need at least 2 options, got %d", len(q.Options))
	}
	if !slices.Contains(q.Options, q.Correct) {
		return fmt.Errorf("correct option %q is not among the options", q.Correct)
	}
	return nil
}

type QuestionStore interface {
	Load(ctx context.Context) ([]Question, error)
}

type AttemptRecorder interface {
	Record(userID int64, correct bool)
}

type Verdict struct {
	Question  Question
	Submitted string
	Correct   bool
	Answer    string
}

// QuizEngine picks and grades questions. The store is read on every call so
// edits to the question file show up without a restart; the price is that an
// index handed out earlier may point elsewhere by the time it is graded.
type QuizEngine struct {
	store    QuestionStore
	recorder AttemptRecorder

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewQuizEngine(store QuestionStore, recorder AttemptRecorder) *QuizEngine {
	return &QuizEngine{
		store:    store,
		recorder: recorder,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextQuestion returns a uniformly random question and its position in the
// freshly loaded set.
func (e *QuizEngine) NextQuestion(ctx context.Context) (int, Question, error) {
	questions, err := e.store.Load(ctx)
	if err != nil {
		return 0, Question{}, err
	}
	if len(questions) == 0 {
		return 0, Question{}, ErrNoQuestions
	}

	e.rngMu.Lock()
	index := e.rng.Intn(len(questions))
	e.rngMu.Unlock()

	return index, questions[index], nil
}

// Grade compares the submitted answer to the stored one by exact string
// equality and records the attempt.
func (e *QuizEngine) Grade(ctx context.Context, userID int64, index int, submitted string) (Verdict, error) {
	q, err := e.questionAt(ctx, index)
	if err != nil {
		return Verdict{}, err
	}
	return e.grade(userID, q, submitted), nil
}

// GradeOption grades the option at optionIndex of the question at index,
// resolving both against the same load.
func (e *QuizEngine) GradeOption(ctx context.Context, userID int64, index, optionIndex int) (Verdict, error) {
	q, err := e.questionAt(ctx, index)
	if err != nil {
		return Verdict{}, err
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return Verdict{}, newError(ErrorStaleQuestion, fmt.Sprintf("option %d out of range", optionIndex), nil)
	}
	return e.grade(userID, q, q.Options[optionIndex]), nil
}

func (e *QuizEngine) questionAt(ctx context.Context, index int) (Question, error) {
	questions, err := e.store.Load(ctx)
	if err != nil {
		return Question{}, err
	}
	if index < 0 || index >= len(questions) {
		return Question{}, newError(ErrorStaleQuestion, fmt.Sprintf("question %d out of range (have %d)", index, len(questions)), nil)
	}
	return questions[index], nil
}

func (e *QuizEngine) grade(userID int64, q Question, submitted string) Verdict {
	correct := submitted == q.Correct
	e.recorder.Record(userID, correct)
	return Verdict{
		Question:  q,
		Submitted: submitted,
		Correct:   correct,
		Answer:    q.Correct,
	}
}
