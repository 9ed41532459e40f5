package sink

import (
	"github.com/valyala/fasthttp"

	"tracker_server/core/domain"
)

// SubmissionFiller completes attribution fields of submitted forms that the
// browser sent empty or not at all.
type SubmissionFiller struct {
	prefix string
}

// NewSubmissionFiller creates a filler using the configured field prefix.
func NewSubmissionFiller(settings domain.Settings) *SubmissionFiller {
	return &SubmissionFiller{prefix: settings.FieldPrefix}
}

// Fill returns body with missing or empty attribution fields set from tuple.
// changed is false when nothing needed filling and body is returned as is.
func (s *SubmissionFiller) Fill(body []byte, tuple domain.AttributionTuple) (out []byte, changed bool) {
	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.ParseBytes(body)

	for _, field := range domain.AllFields {
		value := tuple.Value(field)
		if value == "" {
			continue
		}
		name := FieldName(s.prefix, field)
		if len(args.Peek(name)) > 0 {
			continue
		}
		args.Set(name, value)
		changed = true
	}

	if !changed {
		return body, false
	}
	return append([]byte(nil), args.QueryString()...), true
}
