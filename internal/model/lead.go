package model

// Placeholder values substituted when the model leaves a field out.
const (
	PhoneNotAvailable      = "Not available"
	DestinationUnspecified = "Not specified"
	PriceNotDiscussed      = "Not discussed"
	NamePlaceholder        = "Unknown"
)

// LeadStatusNew is the only status the extraction pipeline emits.
const LeadStatusNew = "New Lead"

// Lead is one prospective customer extracted from a conversation.
type Lead struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Destination string `json:"destination"`
	Status      string `json:"status"`
	Price       string `json:"price"`
	Services    string `json:"services,omitempty"`
}

// HasPhone reports whether the lead carries a real phone number rather than
// the "Not available" sentinel.
func (l Lead) HasPhone() bool {
	return l.PhoneNumber != "" && l.PhoneNumber != PhoneNotAvailable
}

// HasName reports whether the lead carries a real name.
func (l Lead) HasName() bool {
	return l.Name != "" && l.Name != NamePlaceholder
}
