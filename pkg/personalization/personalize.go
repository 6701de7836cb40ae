package personalization

import (
	"fmt"
	"strings"
	"time"
)

// Recipient carries the fixed variable set available to every template,
// plus caller-supplied data merged in under their own names.
type Recipient struct {
	UserID string
	Name   string
	Email  string
	Data   map[string]any
}

// Rendered is the personalized output for one template.
type Rendered struct {
	Subject string
	Content string
	HTML    string
}

// Personalize performs literal {{variable}} substitution over the template's
// subject, content, and HTML. There are no conditionals or loops, and
// unmatched placeholders are left verbatim.
//
// The fixed variables are user_id, name, email, date, and time; entries from
// Recipient.Data are merged in by key and win over the fixed set.
func Personalize(tpl *Template, rec Recipient, now time.Time) Rendered {
	vars := map[string]string{
		"user_id": rec.UserID,
		"name":    rec.Name,
		"email":   rec.Email,
		"date":    now.Format("2006-01-02"),
		"time":    now.Format("15:04"),
	}
	for k, v := range rec.Data {
		vars[k] = fmt.Sprintf("%v", v)
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	replacer := strings.NewReplacer(pairs...)

	return Rendered{
		Subject: replacer.Replace(tpl.Subject),
		Content: replacer.Replace(tpl.Content),
		HTML:    replacer.Replace(tpl.HTML),
	}
}
