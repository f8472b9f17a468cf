package service

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRe matches {token} placeholders in a message template
var placeholderRe = regexp.MustCompile(`\{[a-zA-Z_][a-zA-Z0-9_]*\}`)

// TemplateService handles message template rendering
type TemplateService struct{}

// NewTemplateService creates a new template service
func NewTemplateService() *TemplateService {
	return &TemplateService{}
}

// Render renders a template against a recipient's personalization tokens.
// Placeholders with no matching token are substituted with a visible
// [missing:<name>] marker so a bad template is obvious in the rendered
// message instead of silently corrupting it.
func (s *TemplateService) Render(template string, tokens map[string]string) (string, error) {
	if template == "" {
		return "", fmt.Errorf("template cannot be empty")
	}

	rendered := placeholderRe.ReplaceAllStringFunc(template, func(placeholder string) string {
		name := strings.Trim(placeholder, "{}")
		if value, ok := tokens[name]; ok {
			return value
		}
		return "[missing:" + name + "]"
	})

	return rendered, nil
}

// ValidateTemplate checks if a template has valid placeholder syntax
func (s *TemplateService) ValidateTemplate(template string) error {
	if template == "" {
		return fmt.Errorf("template cannot be empty")
	}

	openCount := strings.Count(template, "{")
	closeCount := strings.Count(template, "}")
	if openCount != closeCount {
		return fmt.Errorf("template has unbalanced braces: %d open, %d close", openCount, closeCount)
	}

	return nil
}

// Placeholders extracts all placeholder names from a template
func (s *TemplateService) Placeholders(template string) []string {
	matches := placeholderRe.FindAllString(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.Trim(m, "{}"))
	}
	return names
}
