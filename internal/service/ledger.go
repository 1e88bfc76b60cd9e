package service

import (
	"sort"
	"sync"
)

type QuizAttempt struct {
	UserID  int64
	Correct bool
}

type Summary struct {
	TotalUsers    int
	TotalAttempts int
	Correct       int
}

func (s Summary) Incorrect() int {
	return s.TotalAttempts - s.Correct
}

// SuccessPercent is 0 when nothing has been attempted yet.
func (s Summary) SuccessPercent() float64 {
	if s.TotalAttempts == 0 {
		return 0
	}
	return float64(s.Correct) * 100 / float64(s.TotalAttempts)
}

type LeaderboardEntry struct {
	UserID     int64
	Handle     string
	Correct    int
	Attempts   int
	Percentage int
}

type userDirectory interface {
	Len() int
	Lookup(id int64) (User, bool)
}

// Ledger is the append-only log of graded quiz answers.
type Ledger struct {
	mu       sync.RWMutex
	attempts []QuizAttempt
	users    userDirectory
}

func NewLedger(users userDirectory) *Ledger {
	return &Ledger{
		attempts: make([]QuizAttempt, 0),
		users:    users,
	}
}

func (l *Ledger) Record(userID int64, correct bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts = append(l.attempts, QuizAttempt{UserID: userID, Correct: correct})
}

func (l *Ledger) Summarize() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{TotalAttempts: len(l.attempts)}
	if l.users != nil {
		s.TotalUsers = l.users.Len()
	}
	for _, a := range l.attempts {
		if a.Correct {
			s.Correct++
		}
	}
	return s
}

// Top aggregates the log per user, best first.
func (l *Ledger) Top(limit int) []LeaderboardEntry {
	l.mu.RLock()
	byUser := make(map[int64]*LeaderboardEntry)
	for _, a := range l.attempts {
		entry, ok := byUser[a.UserID]
		if !ok {
			entry = &LeaderboardEntry{UserID: a.UserID}
			byUser[a.UserID] = entry
		}
		entry.Attempts++
		if a.Correct {
			entry.Correct++
		}
	}
	l.mu.RUnlock()

	sorted := make([]LeaderboardEntry, 0, len(byUser))
	for _, entry := range byUser {
		entry.Percentage = (entry.Correct * 100) / entry.Attempts
		if l.users != nil {
			if u, ok := l.users.Lookup(entry.UserID); ok {
				entry.Handle = u.Handle
			}
		}
		sorted = append(sorted, *entry)
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Correct != sorted[j].Correct {
			return sorted[i].Correct > sorted[j].Correct
		}
		if sorted[i].Percentage != sorted[j].Percentage {
			return sorted[i].Percentage > sorted[j].Percentage
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	if limit <= 0 || limit > len(sorted) {
		limit = len(sorted)
	}
	return sorted[:limit]
}
