package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var debriefTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatClock": formatClock,
		"formatDate": func(unixMillis int64, layout string) string {
			return time.UnixMilli(unixMillis).UTC().Format(layout)
		},
	}
	debriefTemplate = template.Must(template.New("debrief").Funcs(funcMap).Parse(debriefHTML))
}

// formatClock renders a duration in seconds as mm:ss, or h:mm:ss past an hour.
func formatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// TemplateData holds data for debrief template rendering
type TemplateData struct {
	Code            string
	Completed       bool
	Step            int
	FinalStep       int
	DurationSeconds int64
	StartedAt       int64
	MVP             string
	Players         []string
	Steps           []TemplateStep
}

// TemplateStep holds one history row for the template
type TemplateStep struct {
	Step            int
	SolverName      string
	SolvedAt        int64
	DurationSeconds int64
	AdminSkip       bool
}

// RenderDebriefHTML renders the debrief template with provided data
func RenderDebriefHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := debriefTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const debriefHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Mission Debrief {{.Code}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .mvp { background: #f5f5f5; padding: 1rem; margin: 1rem 0; border-left: 3px solid #333; }
    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #ddd; }
    .skip { color: #999; font-style: italic; }
  </style>
</head>
<body>
  <h1>Mission Debrief: {{.Code}}</h1>
  <div class="meta">
    {{if .Completed}}Mission complete{{else}}Aborted at step {{.Step}} of {{.FinalStep}}{{end}}
    | Started {{formatDate .StartedAt "Jan 2, 2006 15:04 MST"}}
    | Total time {{formatClock .DurationSeconds}}
  </div>
  {{if .MVP}}<div class="mvp">MVP: <strong>{{.MVP}}</strong></div>{{end}}
  <h2>Crew</h2>
  <p>{{range $i, $p := .Players}}{{if $i}}, {{end}}{{$p}}{{end}}</p>
  <h2>Timeline</h2>
  <table>
    <tr><th>Step</th><th>Solved by</th><th>Took</th><th>At</th></tr>
    {{range .Steps}}
    <tr{{if .AdminSkip}} class="skip"{{end}}>
      <td>{{.Step}}</td>
      <td>{{.SolverName}}</td>
      <td>{{formatClock .DurationSeconds}}</td>
      <td>{{formatDate .SolvedAt "15:04:05"}}</td>
    </tr>
    {{end}}
  </table>
</body>
</html>`
