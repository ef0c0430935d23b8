package iq

import "fmt"

// UsageError is returned when the sample file argument is missing.
type UsageError struct {
	Usage string
}

func (e *UsageError) Error() string {
	if e.Usage == "" {
		return "missing sample file argument"
	}
	return fmt.Sprintf("missing sample file argument, usage: %s", e.Usage)
}

func (e *UsageError) Is(target error) bool {
	_, ok := target.(*UsageError)
	return ok
}

// FileNotFoundError is returned when the sample file does not exist.
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("sample file '%s' not found", e.Path)
}

func (e *FileNotFoundError) Unwrap() error {
	return e.Err
}

func (e *FileNotFoundError) Is(target error) bool {
	_, ok := target.(*FileNotFoundError)
	return ok
}
