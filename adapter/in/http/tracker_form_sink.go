package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"tracker_server/adapter/out/sink"
	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/pkg/logger"
)

// FormSink fills attribution fields on the way out (HTML pages) and on the
// way in (form submissions). It only reads attribution state.
type FormSink struct {
	service  in.AttributionService
	storeFor StoreFor
	injector *sink.FormInjector
	filler   *sink.SubmissionFiller
	auto     bool
}

func NewFormSink(service in.AttributionService, storeFor StoreFor) *FormSink {
	settings := service.Settings()
	return &FormSink{
		service:  service,
		storeFor: storeFor,
		injector: sink.NewFormInjector(settings),
		filler:   sink.NewSubmissionFiller(settings),
		auto:     settings.AutoFieldsEnabled,
	}
}

func (s *FormSink) tuple(c *fiber.Ctx) domain.AttributionTuple {
	if t, ok := AttributionFrom(c); ok {
		return t
	}
	return s.service.Current(c.UserContext(), s.storeFor(c))
}

// InjectHTML rewrites successful HTML responses so every form carries the
// attribution inputs. Compressed bodies are left alone.
func (s *FormSink) InjectHTML() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		if !s.auto || c.Method() != fiber.MethodGet {
			return nil
		}

		res := c.Response()
		if res.StatusCode() != fiber.StatusOK || len(res.Header.Peek(fiber.HeaderContentEncoding)) > 0 {
			return nil
		}
		if !strings.HasPrefix(strings.ToLower(string(res.Header.ContentType())), fiber.MIMETextHTML) {
			return nil
		}

		tuple := s.tuple(c)
		if tuple.Source == "" {
			return nil
		}

		out, forms, err := s.injector.InjectBytes(res.Body(), tuple)
		if err != nil {
			logger.WithContext(c.UserContext()).WithError(err).Warn("form injection skipped for %s", c.Path())
			return nil
		}
		if forms == 0 {
			return nil
		}
		res.SetBodyRaw(out)
		return nil
	}
}

// FillSubmission completes attribution fields in urlencoded POST bodies
// before they reach the site.
func (s *FormSink) FillSubmission() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost || !strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationForm) {
			return c.Next()
		}

		tuple := s.service.Current(c.UserContext(), s.storeFor(c))
		if tuple.Source == "" {
			return c.Next()
		}
		if body, changed := s.filler.Fill(c.Body(), tuple); changed {
			c.Request().SetBody(body)
		}
		return c.Next()
	}
}
