// Package render produces notification titles and bodies from transition
// events and rule templates.
package render

import (
	"fmt"
	"strings"

	"alertline/internal/domain"
	"alertline/internal/registry"
	"alertline/internal/watch"
)

// Placeholders a template may use. Anything else is rejected at rule-save
// time and left verbatim at render time.
var placeholders = map[string]bool{
	"object":     true,
	"old_status": true,
	"new_status": true,
	"changed_by": true,
}

// Title builds the fixed notification title for a transition.
func Title(d registry.Descriptor, event domain.TransitionEvent) string {
	return fmt.Sprintf("%s: status changed to '%s'", d.Label, d.StatusLabel(event.NewStatus))
}

// Body renders a rule's template against the transition. A nil or malformed
// template falls back to the canonical sentence.
func Body(template *string, d registry.Descriptor, event domain.TransitionEvent, snap watch.Snapshot, actorName string) string {
	if template == nil || strings.TrimSpace(*template) == "" {
		return fallback(d, event, snap)
	}
	body, err := substitute(*template, map[string]string{
		"object":     snap.DisplayRef,
		"old_status": d.StatusLabel(event.OldStatus),
		"new_status": d.StatusLabel(event.NewStatus),
		"changed_by": actorName,
	})
	if err != nil {
		return fallback(d, event, snap)
	}
	return body
}

func fallback(d registry.Descriptor, event domain.TransitionEvent, snap watch.Snapshot) string {
	return fmt.Sprintf("%s '%s' changed from '%s' to '%s'.",
		d.Label, snap.DisplayRef, d.StatusLabel(event.OldStatus), d.StatusLabel(event.NewStatus))
}

// Validate rejects templates with unknown placeholders or unbalanced braces.
func Validate(template string) error {
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return nil
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			return fmt.Errorf("template has unclosed placeholder")
		}
		name := rest[open+1 : open+close]
		if strings.IndexByte(name, '{') >= 0 {
			return fmt.Errorf("template has nested brace in placeholder")
		}
		if !placeholders[name] {
			return fmt.Errorf("unknown placeholder {%s}", name)
		}
		rest = rest[open+close+1:]
	}
}

// substitute replaces known placeholders and leaves unknown ones verbatim.
// Unbalanced or nested braces are an error so the caller can fall back.
func substitute(template string, values map[string]string) (string, error) {
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:open])
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			return "", fmt.Errorf("unclosed placeholder")
		}
		name := rest[open+1 : open+close]
		if strings.IndexByte(name, '{') >= 0 {
			return "", fmt.Errorf("nested brace in placeholder")
		}
		if v, ok := values[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(rest[open : open+close+1])
		}
		rest = rest[open+close+1:]
	}
}
