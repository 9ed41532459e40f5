// Package sink copies resolved attribution values into forms. Sinks only read
// attribution state; they never write to the store.
package sink

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tracker_server/core/domain"
)

// FieldName returns the form field name of a slot, e.g. "rt_source".
func FieldName(prefix string, f domain.Field) string {
	return prefix + string(f)
}

// FieldClass returns the CSS class marking a slot's field, e.g. "js-rt_source".
func FieldClass(prefix string, f domain.Field) string {
	return "js-" + prefix + string(f)
}

// FormInjector adds or updates hidden attribution inputs in every <form> of an HTML page.
type FormInjector struct {
	prefix string
}

// NewFormInjector creates an injector using the configured field prefix.
func NewFormInjector(settings domain.Settings) *FormInjector {
	return &FormInjector{prefix: settings.FieldPrefix}
}

// Inject parses an HTML document from r and returns it with attribution inputs.
// The second return reports how many forms were touched; zero means the
// caller can send the original bytes.
func (f *FormInjector) Inject(r io.Reader, tuple domain.AttributionTuple) ([]byte, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("parse html: %w", err)
	}

	forms := doc.Find("form")
	if forms.Length() == 0 {
		return nil, 0, nil
	}

	forms.Each(func(_ int, form *goquery.Selection) {
		f.populate(form, tuple)
	})

	html, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return nil, 0, fmt.Errorf("render html: %w", err)
	}
	return []byte(html), forms.Length(), nil
}

// InjectBytes is Inject over an in-memory document.
func (f *FormInjector) InjectBytes(body []byte, tuple domain.AttributionTuple) ([]byte, int, error) {
	return f.Inject(bytes.NewReader(body), tuple)
}

func (f *FormInjector) populate(form *goquery.Selection, tuple domain.AttributionTuple) {
	for _, field := range domain.AllFields {
		name := FieldName(f.prefix, field)
		class := FieldClass(f.prefix, field)
		value := tuple.Value(field)

		existing := form.Find(fieldSelector(name, class))
		if existing.Length() > 0 {
			existing.SetAttr("value", value)
			continue
		}
		if value == "" {
			continue
		}

		form.AppendHtml(`<input type="hidden">`)
		input := form.Children().Last()
		input.SetAttr("name", name)
		input.SetAttr("class", class)
		input.SetAttr("value", value)
	}
}

// fieldSelector matches inputs by name or class using quoted attribute
// selectors, so prefixes with CSS metacharacters stay literal.
func fieldSelector(name, class string) string {
	n, c := cssString(name), cssString(class)
	return fmt.Sprintf(`input[name=%s], input[class~=%s], [class~=%s] input`, n, c, c)
}

var cssEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\a `, "\r", `\d `, "\f", `\c `)

func cssString(s string) string {
	return `"` + cssEscaper.Replace(s) + `"`
}
