package errors

import (
	"errors"
	"fmt"
	"sync"
)

// Errors collects failures from independent steps and joins them.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}

func format(err error, msg string, args ...any) string {
	text := fmt.Sprintf(msg, args...)
	if err != nil {
		text = fmt.Sprintf("%s: %v", text, err)
	}

	return text
}
