package model

import (
	"fmt"
	"strings"
)

// Validate 校验请求，调用前应先执行 WithDefaults
func (r GenerationRequest) Validate() error {
	switch r.InputType {
	case InputText:
		if err := ValidateContent(r.Content); err != nil {
			return err
		}
	case InputVideoURL, InputArticleURL:
		if strings.TrimSpace(r.URL) == "" {
			return &ValidationError{Field: "url", Reason: "Please enter a valid URL."}
		}
	default:
		return &ValidationError{Field: "inputType", Reason: fmt.Sprintf("unsupported input type %q", r.InputType)}
	}
	if !r.Platform.valid() {
		return &ValidationError{Field: "platform", Reason: fmt.Sprintf("unsupported platform %q", r.Platform)}
	}
	if !r.Style.valid() {
		return &ValidationError{Field: "style", Reason: fmt.Sprintf("unsupported style %q", r.Style)}
	}
	if r.ThreadLength < MinThreadLength || r.ThreadLength > MaxThreadLength {
		return &ValidationError{
			Field:  "threadLength",
			Reason: fmt.Sprintf("must be between %d and %d, got %d", MinThreadLength, MaxThreadLength, r.ThreadLength),
		}
	}
	if a := strings.TrimSpace(r.TargetAudience); a != "" {
		n := CountChars(a)
		if n < MinAudienceLength {
			return &ValidationError{Field: "targetAudience", Reason: "Please describe your target audience."}
		}
		if n > MaxAudienceLength {
			return &ValidationError{Field: "targetAudience", Reason: "Description is too long."}
		}
	}
	return nil
}

// ValidateContent 文本长度必须在 [MinContentLength, MaxContentLength] 内
func ValidateContent(content string) error {
	n := CountChars(content)
	if n < MinContentLength {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("Content must be at least %d characters long.", MinContentLength)}
	}
	if n > MaxContentLength {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("Content must be at most %d characters long.", MaxContentLength)}
	}
	return nil
}
