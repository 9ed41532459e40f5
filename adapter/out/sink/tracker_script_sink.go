package sink

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/goccy/go-json"

	"tracker_server/core/domain"
)

const (
	// PollInterval is the delay between client-side re-applications.
	PollInterval = 500 * time.Millisecond
	// PollIterations bounds the polling loop to PollIterations*PollInterval.
	PollIterations = 20
)

type scriptPayload struct {
	Source   string          `json:"source"`
	Medium   string          `json:"medium"`
	Campaign string          `json:"campaign"`
	Referrer string          `json:"referrer"`
	Settings domain.Settings `json:"settings"`
}

type scriptData struct {
	Payload    string
	Fields     string
	IntervalMS int64
	Iterations int
}

// ScriptRenderer renders the client script that fills hidden form fields.
type ScriptRenderer struct {
	settings domain.Settings
	tmpl     *template.Template
}

// NewScriptRenderer creates a renderer for the given settings.
func NewScriptRenderer(settings domain.Settings) *ScriptRenderer {
	return &ScriptRenderer{
		settings: settings,
		tmpl:     template.Must(template.New("tracker.js").Parse(trackerScript)),
	}
}

// Render returns the script with tuple serialized into it.
func (r *ScriptRenderer) Render(tuple domain.AttributionTuple) ([]byte, error) {
	payload, err := json.Marshal(scriptPayload{
		Source:   tuple.Source,
		Medium:   tuple.Medium,
		Campaign: tuple.Campaign,
		Referrer: tuple.Referrer,
		Settings: r.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	names := make([]string, len(domain.AllFields))
	for i, f := range domain.AllFields {
		names[i] = string(f)
	}
	fields, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}

	var buf bytes.Buffer
	err = r.tmpl.Execute(&buf, scriptData{
		Payload:    string(payload),
		Fields:     string(fields),
		IntervalMS: PollInterval.Milliseconds(),
		Iterations: PollIterations,
	})
	if err != nil {
		return nil, fmt.Errorf("render script: %w", err)
	}
	return buf.Bytes(), nil
}

const trackerScript = `(function () {
  "use strict";
  var data = {{.Payload}};
  var fields = {{.Fields}};
  var prefix = data.settings.fieldPrefix || "";
  window.referrerTracker = data;

  function log() {
    if (data.settings.debug && window.console) {
      console.log.apply(console, ["[referrer-tracker]"].concat([].slice.call(arguments)));
    }
  }

  window.getReferrerValue = function (field) {
    return fields.indexOf(field) >= 0 ? (data[field] || "") : "";
  };

  function setValue(el, value) {
    if (el && "value" in el && el.value !== value) {
      el.value = value;
    }
  }

  function apply() {
    fields.forEach(function (field) {
      var value = data[field] || "";
      var name = prefix + field;
      var marked = document.querySelectorAll(".js-" + name);
      for (var i = 0; i < marked.length; i++) {
        if (marked[i].tagName === "INPUT") {
          setValue(marked[i], value);
        } else {
          marked[i].querySelectorAll("input").forEach(function (el) { setValue(el, value); });
        }
      }
      document.querySelectorAll('input[name="' + name + '"]').forEach(function (el) { setValue(el, value); });

      if (!data.settings.autoFields || !value) {
        return;
      }
      document.querySelectorAll("form").forEach(function (form) {
        if (form.querySelector('input[name="' + name + '"]')) {
          return;
        }
        var input = document.createElement("input");
        input.type = "hidden";
        input.name = name;
        input.className = "js-" + name;
        input.value = value;
        form.appendChild(input);
        log("added", name, "to form", form);
      });
    });
  }

  function start() {
    apply();
    setTimeout(apply, {{.IntervalMS}});
    var runs = 0;
    var timer = setInterval(function () {
      apply();
      runs++;
      if (runs >= {{.Iterations}}) {
        clearInterval(timer);
        log("polling stopped");
      }
    }, {{.IntervalMS}});
  }

  if (document.readyState === "loading") {
    document.addEventListener("DOMContentLoaded", start);
  } else {
    start();
  }
})();
`
