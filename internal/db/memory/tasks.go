package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marquee/internal/orders/txn"
)

type taskKey struct {
	transactionID string
	name          txn.TaskName
}

// TaskStore is an in-memory task queue.
type TaskStore struct {
	mu    sync.Mutex
	byID  map[string]txn.Task
	byKey map[taskKey]string
}

func NewTaskStore() *TaskStore {
	return &TaskStore{
		byID:  make(map[string]txn.Task),
		byKey: make(map[taskKey]string),
	}
}

func (s *TaskStore) CreateMany(_ context.Context, tasks []txn.Task) ([]txn.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]txn.Task, 0, len(tasks))
	for _, t := range tasks {
		key := taskKey{transactionID: t.Data.TransactionID, name: t.Name}
		if id, ok := s.byKey[key]; ok {
			out = append(out, s.byID[id])
			continue
		}
		if t.ExecutionResults == nil {
			t.ExecutionResults = []txn.ExecutionResult{}
		}
		s.byID[t.ID] = t
		s.byKey[key] = t.ID
		out = append(out, t)
	}
	return out, nil
}

func (s *TaskStore) Get(_ context.Context, id string) (txn.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return txn.Task{}, fmt.Errorf("%w: task %s", txn.ErrNotFound, id)
	}
	return t, nil
}

func (s *TaskStore) ClaimOne(_ context.Context, name txn.TaskName, now time.Time) (txn.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []txn.Task
	for _, t := range s.byID {
		if t.Name == name && t.Status == txn.TaskReady && !t.RunsAt.After(now) && !t.Exhausted() {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return txn.Task{}, false, nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunsAt.Before(due[j].RunsAt) })

	t := due[0]
	tried := now
	t.Status = txn.TaskRunning
	t.LastTriedAt = &tried
	t.NumberOfTried++
	s.byID[t.ID] = t
	return t, true, nil
}

func (s *TaskStore) PushExecutionResult(_ context.Context, id string, status txn.TaskStatus, res txn.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok || t.Status != txn.TaskRunning {
		return fmt.Errorf("%w: running task %s", txn.ErrNotFound, id)
	}
	t.ExecutionResults = append(append([]txn.ExecutionResult(nil), t.ExecutionResults...), res)
	t.Status = status
	s.byID[id] = t
	return nil
}

func (s *TaskStore) RetryStalled(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.byID {
		if !stalled(t, before) || t.Exhausted() {
			continue
		}
		t.Status = txn.TaskReady
		s.byID[id] = t
		n++
	}
	return n, nil
}

func (s *TaskStore) AbortExhausted(_ context.Context, before time.Time) ([]txn.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var aborted []txn.Task
	for id, t := range s.byID {
		if !stalled(t, before) || !t.Exhausted() {
			continue
		}
		t.Status = txn.TaskAborted
		s.byID[id] = t
		aborted = append(aborted, t)
	}
	return aborted, nil
}

func stalled(t txn.Task, before time.Time) bool {
	return t.Status == txn.TaskRunning && t.LastTriedAt != nil && t.LastTriedAt.Before(before)
}
