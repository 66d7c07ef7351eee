package bot

import (
	"fmt"

	"cleanops/internal/models"
)

const (
	msgWelcome = iota
	msgHelp
	msgNotRegistered
	msgSlowDown
	msgNeedBookingID
	msgNoJobs
	msgJobsHeader
	msgStarted
	msgCompleted
	msgLocationSaved
	msgLocationRejected
	msgChecklistHeader
)

var messages = map[string]map[int]string{
	models.LanguageEN: {
		msgWelcome:          "Hi %s!",
		msgHelp:             "Share your live location before starting a job.\n/today [YYYY-MM-DD] - your jobs\n/begin <id> - start a job\n/checklist <id> - tick checklist items\n/done <id> - finish a job",
		msgNotRegistered:    "This chat is not linked to an employee. Ask the office to register chat id %d.",
		msgSlowDown:         "⚠️ Too many messages, please wait a moment.",
		msgNeedBookingID:    "Please add the job number, e.g. /begin 42",
		msgNoJobs:           "No jobs on %s.",
		msgJobsHeader:       "📋 Jobs on %s:",
		msgStarted:          "🧹 Job #%d started.",
		msgCompleted:        "✅ Job #%d completed. Thank you!",
		msgLocationSaved:    "📍 Location received.",
		msgLocationRejected: "⚠️ That location could not be used.",
		msgChecklistHeader:  "Job #%d checklist: %d/%d done (%d%%). Items marked * are required.",
	},
	models.LanguageES: {
		msgWelcome:          "¡Hola %s!",
		msgHelp:             "Comparte tu ubicación en tiempo real antes de empezar.\n/today [AAAA-MM-DD] - tus trabajos\n/begin <id> - empezar\n/checklist <id> - marcar tareas\n/done <id> - terminar",
		msgNotRegistered:    "Este chat no está vinculado a un empleado. Pide a la oficina que registre el chat id %d.",
		msgSlowDown:         "⚠️ Demasiados mensajes, espera un momento.",
		msgNeedBookingID:    "Indica el número de trabajo, p. ej. /begin 42",
		msgNoJobs:           "No hay trabajos el %s.",
		msgJobsHeader:       "📋 Trabajos del %s:",
		msgStarted:          "🧹 Trabajo #%d iniciado.",
		msgCompleted:        "✅ Trabajo #%d completado. ¡Gracias!",
		msgLocationSaved:    "📍 Ubicación recibida.",
		msgLocationRejected: "⚠️ No se pudo usar esa ubicación.",
		msgChecklistHeader:  "Lista del trabajo #%d: %d/%d hechas (%d%%). Las marcadas con * son obligatorias.",
	},
}

var errorMessages = map[string]map[string]string{
	models.LanguageEN: {
		"not_found":            "❌ Job not found.",
		"not_authorized":       "❌ This job is not assigned to you.",
		"invalid_state":        "⚠️ The job is not in a state that allows this.",
		"checklist_incomplete": "⚠️ Finish the required checklist items first: %s",
		"location_unavailable": "📍 No recent location. Share your live location and try again.",
		"evidence_missing":     "📷 Upload the after photos first.",
		"invalid_input":        "⚠️ %s",
		"internal":             "❌ Something went wrong. Please try again or call the office.",
	},
	models.LanguageES: {
		"not_found":            "❌ Trabajo no encontrado.",
		"not_authorized":       "❌ Este trabajo no está asignado a ti.",
		"invalid_state":        "⚠️ El trabajo no está en un estado que lo permita.",
		"checklist_incomplete": "⚠️ Termina primero las tareas obligatorias: %s",
		"location_unavailable": "📍 No hay ubicación reciente. Comparte tu ubicación y vuelve a intentarlo.",
		"evidence_missing":     "📷 Sube primero las fotos finales.",
		"invalid_input":        "⚠️ %s",
		"internal":             "❌ Algo salió mal. Inténtalo de nuevo o llama a la oficina.",
	},
}

func catalog(lang string) string {
	if _, ok := messages[lang]; ok {
		return lang
	}
	return models.LanguageEN
}

func text(lang string, key int, args ...any) string {
	format := messages[catalog(lang)][key]
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func errorText(lang, code string, err error) string {
	table := errorMessages[catalog(lang)]
	format, ok := table[code]
	if !ok {
		format = table["internal"]
	}
	switch code {
	case "checklist_incomplete", "invalid_input":
		return fmt.Sprintf(format, err.Error())
	}
	return format
}
