// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package notify renders notification texts from message templates.
package notify

import "strings"

// Render substitutes {key} placeholders in a template body. Placeholders
// without a matching key are left as literal text.
func Render(template string, data map[string]string) string {
	if len(data) == 0 {
		return template
	}
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{"+key+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
