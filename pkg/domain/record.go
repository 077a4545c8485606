package domain

// Record is the result of resolving a collected reference (e.g. a PNR) against a reservation system.
type Record struct {
	Reference   string `json:"reference"`
	Kind        string `json:"kind,omitempty"`
	Status      string `json:"status"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Summary renders the record as a sentence suitable for speech.
func (r *Record) Summary() string {
	if r == nil {
		return ""
	}
	if r.Detail != "" {
		return r.Detail
	}
	s := "Your booking " + r.Reference + " is " + r.Status + "."
	if r.Origin != "" && r.Destination != "" {
		s = "Your booking " + r.Reference + " from " + r.Origin + " to " + r.Destination + " is " + r.Status + "."
	}
	return s
}
