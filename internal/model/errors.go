package model

import (
	"errors"
	"fmt"
)

// ValidationError 请求参数不合法，流水线不会启动
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExtractionError 视频转写或文章抓取失败，生成调用前终止
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract content from %s", e.Source)
	}
	return fmt.Sprintf("extract content from %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// ErrEmptyThread 模型返回空线程或无法解析
var ErrEmptyThread = errors.New("Failed to generate a valid thread. The AI may have returned an empty result.")

// GenerationError 线程或钩子生成失败、结果无法解析
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s generation failed", e.Stage)
	}
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsExtractionError checks if an error is an ExtractionError.
func IsExtractionError(err error) bool {
	var v *ExtractionError
	return errors.As(err, &v)
}

// IsGenerationError checks if an error is a GenerationError.
func IsGenerationError(err error) bool {
	var v *GenerationError
	return errors.As(err, &v)
}
