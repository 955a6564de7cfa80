package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/repo/persistent"
)

const (
	placeholderOpen  = "{{"
	placeholderClose = "}}"
)

// TemplateEngine renders stored templates. It has no state of its own and
// never creates notifications.
type TemplateEngine struct {
	templates persistent.TemplateRepository
}

func NewTemplateEngine(templates persistent.TemplateRepository) *TemplateEngine {
	return &TemplateEngine{templates: templates}
}

// Render looks up the active template by code and fills its placeholders.
func (e *TemplateEngine) Render(ctx context.Context, code string, variables map[string]interface{}) (*entity.RenderedTemplate, error) {
	tmpl, err := e.templates.FindActiveByCode(ctx, code)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, &entity.TemplateNotFoundError{Code: code}
	}
	if err != nil {
		return nil, err
	}

	return &entity.RenderedTemplate{
		Title:    Substitute(tmpl.TitleTemplate, variables),
		Body:     Substitute(tmpl.BodyTemplate, variables),
		Kind:     tmpl.DefaultKind,
		Icon:     tmpl.DefaultIcon,
		Category: tmpl.Category,
	}, nil
}

// SaveTemplate validates and stores a template, replacing the active one with the same code.
func (e *TemplateEngine) SaveTemplate(ctx context.Context, tmpl *entity.Template) error {
	tmpl.Code = strings.TrimSpace(tmpl.Code)
	if tmpl.Code == "" {
		return &entity.ValidationError{Field: "code", Reason: "is required"}
	}
	if tmpl.TitleTemplate == "" {
		return &entity.ValidationError{Field: "title_template", Reason: "is required"}
	}
	if tmpl.BodyTemplate == "" {
		return &entity.ValidationError{Field: "body_template", Reason: "is required"}
	}
	kind, err := entity.NormalizeKind(tmpl.DefaultKind)
	if err != nil {
		return &entity.ValidationError{Field: "default_kind", Reason: err.Error()}
	}
	tmpl.DefaultKind = kind
	if tmpl.DefaultIcon == "" {
		tmpl.DefaultIcon = entity.DefaultIcon
	}
	if tmpl.Category == "" {
		tmpl.Category = entity.DefaultCategory
	}
	return e.templates.Save(ctx, tmpl)
}

// Substitute replaces every {{key}} whose key is present in variables with the
// value's string form. Unknown keys stay as literal text and substituted values
// are never rescanned.
func Substitute(text string, variables map[string]interface{}) string {
	if len(variables) == 0 || !strings.Contains(text, placeholderOpen) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	rest := text
	for {
		start := strings.Index(rest, placeholderOpen)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(placeholderOpen):], placeholderClose)
		if end < 0 {
			break
		}
		end += start + len(placeholderOpen)
		key := rest[start+len(placeholderOpen) : end]

		value, ok := variables[key]
		if !ok {
			// keep the opening braces and keep scanning inside them
			b.WriteString(rest[:start+len(placeholderOpen)])
			rest = rest[start+len(placeholderOpen):]
			continue
		}
		b.WriteString(rest[:start])
		b.WriteString(stringify(value))
		rest = rest[end+len(placeholderClose):]
	}
	b.WriteString(rest)
	return b.String()
}

func stringify(value interface{}) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}
