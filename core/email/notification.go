package email

import (
	"html"
	"sort"
	"strings"
)

// NotificationTag labels lead notification emails for provider-side
// filtering and analytics.
const NotificationTag = "lead_notification"

// LeadNotification renders a plain HTML summary of a submitted lead.
// Metadata fields (underscore-prefixed) are listed after the lead's own
// fields. All values are escaped; the submission may contain anything
// that survived sanitization.
func LeadNotification(subject string, fields map[string]string) SendEmailParams {
	var lead, meta []string
	for name := range fields {
		if strings.HasPrefix(name, "_") {
			meta = append(meta, name)
		} else {
			lead = append(lead, name)
		}
	}
	sort.Strings(lead)
	sort.Strings(meta)

	var b strings.Builder
	b.WriteString("<h2>")
	b.WriteString(html.EscapeString(subject))
	b.WriteString("</h2><table>")
	for _, name := range append(lead, meta...) {
		b.WriteString("<tr><td><strong>")
		b.WriteString(html.EscapeString(strings.TrimPrefix(name, "_")))
		b.WriteString("</strong></td><td>")
		b.WriteString(html.EscapeString(fields[name]))
		b.WriteString("</td></tr>")
	}
	b.WriteString("</table>")

	return SendEmailParams{
		Subject:  subject,
		BodyHTML: b.String(),
		Tag:      NotificationTag,
	}
}
