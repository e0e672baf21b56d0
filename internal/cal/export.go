package cal

import (
	"fmt"
	"strings"
)

// Export renders the active list as the engine's apply-step instruction
// format: one line per application, selections first, in registry order.
// The engine applies lines top to bottom, so this must preserve the order
// Add established.
func (s *CalState) Export() string {
	var b strings.Builder
	for _, app := range s.Active {
		b.WriteString(exportLine(app))
		b.WriteByte('\n')
	}
	return b.String()
}

func exportLine(app CalApplication) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("caltable='%s'", app.From.Table))
	parts = append(parts, fmt.Sprintf("caltype='%s'", app.From.Type))
	if app.From.CalWt {
		parts = append(parts, "calwt=T")
	} else {
		parts = append(parts, "calwt=F")
	}
	if app.From.Interp != "" {
		parts = append(parts, fmt.Sprintf("tinterp='%s'", app.From.Interp))
	}
	if len(app.From.SpwMap) > 0 {
		parts = append(parts, "spwmap="+app.From.spwMapString())
	}

	if app.To.Vis != "" {
		parts = append(parts, fmt.Sprintf("vis='%s'", app.To.Vis))
	}
	if app.To.Field != "" {
		parts = append(parts, fmt.Sprintf("field='%s'", app.To.Field))
	}
	if app.To.Spw != "" {
		parts = append(parts, fmt.Sprintf("spw='%s'", app.To.Spw))
	}
	if app.To.Antenna != "" {
		parts = append(parts, fmt.Sprintf("antenna='%s'", app.To.Antenna))
	}
	if app.To.Intent != "" {
		parts = append(parts, fmt.Sprintf("intent='%s'", app.To.Intent))
	}

	return strings.Join(parts, " ")
}
