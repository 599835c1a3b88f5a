package notifications

import (
	"bytes"
	"html/template"
	"time"
)

const followupReminderTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.Name}},</p>
  <p>A follow-up is due:</p>
  <ul>
    <li>Lead: {{.LeadTitle}}</li>
    <li>Type: {{.FollowupType}}</li>
    <li>Due: {{.Due}}</li>
  </ul>
  <p>{{.Description}}</p>
</body>
</html>`

var followupReminderTmpl = template.Must(template.New("followup_reminder").Parse(followupReminderTemplate))

type followupReminderData struct {
	Name         string
	LeadTitle    string
	FollowupType string
	Due          string
	Description  string
}

func buildFollowupReminderHTML(name, leadTitle, followupType, description string, due time.Time) (string, error) {
	data := followupReminderData{
		Name:         name,
		LeadTitle:    leadTitle,
		FollowupType: followupType,
		Due:          due.Format("02 Jan 2006 15:04"),
		Description:  description,
	}
	var buf bytes.Buffer
	if err := followupReminderTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const quotationDecisionTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Hi {{.Name}},</p>
  <p>Your quotation "{{.Title}}" was {{.Decision}}.</p>
  {{if .Comment}}<p>Comment: {{.Comment}}</p>{{end}}
</body>
</html>`

var quotationDecisionTmpl = template.Must(template.New("quotation_decision").Parse(quotationDecisionTemplate))

type quotationDecisionData struct {
	Name     string
	Title    string
	Decision string
	Comment  string
}

func buildQuotationDecisionHTML(name, title, decision, comment string) (string, error) {
	data := quotationDecisionData{
		Name:     name,
		Title:    title,
		Decision: decision,
		Comment:  comment,
	}
	var buf bytes.Buffer
	if err := quotationDecisionTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
