package email

import (
	"bytes"
	"html/template"
)

const subjectHotLeadFmt = "Hot lead: %s is ready to move"

// hotLeadTemplate is the alert body. Kept inline; a single alert does not
// warrant an embedded template directory.
var hotLeadTemplate = template.Must(template.New("hot_lead").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #1f2933;">
    <h2>Hot lead alert</h2>
    <p><strong>{{.ClientName}}</strong> just crossed an engagement score of <strong>{{.Score}}</strong>.</p>
    <p>High scores cool off quickly. Call while the interest is fresh.</p>
    <p style="color: #7b8794; font-size: 12px;">Deal {{.DealID}}</p>
  </body>
</html>`))

type hotLeadData struct {
	ClientName string
	Score      int
	DealID     string
}

func renderHotLead(data hotLeadData) (string, error) {
	var buf bytes.Buffer
	if err := hotLeadTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
