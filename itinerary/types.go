package itinerary

import "encoding/json"

type Activity struct {
	Time        string `json:"time"`
	Activity    string `json:"activity"`
	Description string `json:"description"`
}

type Day struct {
	DayNumber  int        `json:"day_number"`
	Theme      string     `json:"theme"`
	ImageQuery string     `json:"image_query"`
	Activities []Activity `json:"activities"`
}

// Itinerary is the shape the model is asked to produce.
type Itinerary struct {
	TripTitle string `json:"trip_title"`
	Summary   string `json:"summary"`
	Days      []Day  `json:"days"`
}

// Result is either the model's itinerary, passed through untouched, or a
// structured description of why the output could not be used.
type Result struct {
	Itinerary json.RawMessage `json:"-"`
	Error     string          `json:"error,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	RawText   string          `json:"raw_text,omitempty"`
}

// OK reports whether the result carries a usable itinerary.
func (r *Result) OK() bool {
	return r.Error == "" && len(r.Itinerary) > 0
}
