// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/campaign-delivery/internal/model"
)

const fallbackName = "valued customer"

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// Personalize fills the customer placeholders of a campaign message.
func Personalize(template string, c *model.Customer) string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = fallbackName
	}
	first, last := name, ""
	if i := strings.IndexByte(name, ' '); i > 0 && name != fallbackName {
		first, last = name[:i], strings.TrimSpace(name[i+1:])
	}
	return RenderTemplate(template, map[string]string{
		"name":       name,
		"first_name": first,
		"last_name":  last,
		"email":      c.Email,
		"location":   c.Location,
	})
}
