package airtable

import "context"

// Forwarder adapts the Client to the submission pipeline's secondary
// dispatch, mapping the sanitized field subset into a Lead.
type Forwarder struct {
	client *Client
}

// NewForwarder wraps a Client for use as a lead forwarder.
func NewForwarder(client *Client) *Forwarder {
	return &Forwarder{client: client}
}

// Forward maps the lead field subset and creates the record.
func (f *Forwarder) Forward(ctx context.Context, lead map[string]string) error {
	return f.client.CreateLead(ctx, LeadFromFields(lead))
}

// LeadFromFields maps the pipeline's field names onto a Lead.
func LeadFromFields(fields map[string]string) Lead {
	return Lead{
		Name:             fields["name"],
		Email:            fields["email"],
		Company:          fields["company"],
		Phone:            fields["phone"],
		FacilitySize:     fields["facility_size"],
		PrimaryChallenge: fields["primary_challenge"],
		FormID:           fields["_form_id"],
		FormVariant:      fields["_form_variant"],
	}
}
