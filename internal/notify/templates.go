package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"cleanops/internal/models"
)

type message struct {
	subject *template.Template
	body    *template.Template
}

var templateSources = map[string]map[string][2]string{
	models.TemplateQuoteApproved: {
		models.LanguageEN: {
			"Your cleaning is booked for {{.service_date}}",
			"Hi {{.client_name}},\n\nYour quote #{{.quote_id}} was approved. We will be there on {{.service_date}} at {{.service_time}}.\nTotal: {{.total}}\n",
		},
		models.LanguageES: {
			"Su limpieza está programada para el {{.service_date}}",
			"Hola {{.client_name}},\n\nSu cotización #{{.quote_id}} fue aprobada. Llegaremos el {{.service_date}} a las {{.service_time}}.\nTotal: {{.total}}\n",
		},
	},
	models.TemplateQuoteRejected: {
		models.LanguageEN: {
			"About your quote #{{.quote_id}}",
			"Hi {{.client_name}},\n\nUnfortunately we cannot take quote #{{.quote_id}} at this time.{{if .reason}}\nReason: {{.reason}}{{end}}\n",
		},
		models.LanguageES: {
			"Sobre su cotización #{{.quote_id}}",
			"Hola {{.client_name}},\n\nLamentablemente no podemos aceptar la cotización #{{.quote_id}} en este momento.{{if .reason}}\nMotivo: {{.reason}}{{end}}\n",
		},
	},
	models.TemplateEmployeeAssigned: {
		models.LanguageEN: {
			"{{.employee_name}} will clean on {{.service_date}}",
			"Hi {{.client_name}},\n\n{{.employee_name}} has been assigned to booking #{{.booking_id}} on {{.service_date}} at {{.service_time}}.\n",
		},
		models.LanguageES: {
			"{{.employee_name}} realizará la limpieza el {{.service_date}}",
			"Hola {{.client_name}},\n\n{{.employee_name}} fue asignado(a) a la reserva #{{.booking_id}} el {{.service_date}} a las {{.service_time}}.\n",
		},
	},
	models.TemplateNewAssignment: {
		models.LanguageEN: {
			"New job #{{.booking_id}}",
			"{{.service_type}} on {{.service_date}} at {{.service_time}}\n{{.address}}\n",
		},
		models.LanguageES: {
			"Nuevo trabajo #{{.booking_id}}",
			"{{.service_type}} el {{.service_date}} a las {{.service_time}}\n{{.address}}\n",
		},
	},
	models.TemplateBookingCompleted: {
		models.LanguageEN: {
			"Your cleaning #{{.booking_id}} is complete",
			"Hi {{.client_name}},\n\nBooking #{{.booking_id}} was completed on {{.completed_at}}. Thank you for choosing us.\nTotal: {{.total}}\n",
		},
		models.LanguageES: {
			"Su limpieza #{{.booking_id}} está completa",
			"Hola {{.client_name}},\n\nLa reserva #{{.booking_id}} se completó el {{.completed_at}}. Gracias por elegirnos.\nTotal: {{.total}}\n",
		},
	},
}

var templates = mustParse()

func mustParse() map[string]map[string]message {
	out := make(map[string]map[string]message, len(templateSources))
	for name, langs := range templateSources {
		out[name] = make(map[string]message, len(langs))
		for lang, src := range langs {
			out[name][lang] = message{
				subject: template.Must(template.New(name + ".subject." + lang).Option("missingkey=zero").Parse(src[0])),
				body:    template.Must(template.New(name + ".body." + lang).Option("missingkey=zero").Parse(src[1])),
			}
		}
	}
	return out
}

// HasTemplate reports whether name is a known template.
func HasTemplate(name string) bool {
	_, ok := templates[name]
	return ok
}

// Render returns subject and body for the template in lang, falling back to English.
func Render(name, lang string, data map[string]string) (string, string, error) {
	langs, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}
	msg, ok := langs[lang]
	if !ok {
		msg = langs[models.LanguageEN]
	}

	var subject, body bytes.Buffer
	if err := msg.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := msg.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return subject.String(), body.String(), nil
}
