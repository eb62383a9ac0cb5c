package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks missing or invalid caller input.
	ErrInput = errors.New("invalid input")
	// ErrExternalTool marks a synthesis, alignment or render backend failure.
	ErrExternalTool = errors.New("external tool failed")
	// ErrResourceMissing marks an absent background clip or asset.
	ErrResourceMissing = errors.New("resource missing")
	// ErrJobNotFound is returned for unknown or expired job ids.
	ErrJobNotFound = errors.New("job not found")
)

// InputError is reported before any work is attempted.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Is(target error) bool { return target == ErrInput }

// ExternalToolError keeps the tool's own diagnostic output.
type ExternalToolError struct {
	Tool       string
	Err        error
	Diagnostic string
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

func (e *ExternalToolError) Is(target error) bool { return target == ErrExternalTool }

// ResourceMissingError means the content library or assets need fixing.
type ResourceMissingError struct {
	Kind string
	Path string
}

func (e *ResourceMissingError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Path)
}

func (e *ResourceMissingError) Is(target error) bool { return target == ErrResourceMissing }

// Stage names used in StageError.
const (
	StageNormalize  = "normalize"
	StageScrape     = "scrape"
	StageSynthesize = "synthesize"
	StageBackground = "background"
	StageAlign      = "align"
	StageChunk      = "chunk"
	StageCompose    = "compose"
	StagePublish    = "publish"
)

// StageError names the pipeline stage an error came from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// InStage wraps err with the stage name; nil stays nil.
func InStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, or "".
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
