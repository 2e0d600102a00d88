package model

import (
	"fmt"
	"sort"
)

// Venue is immutable reference data.  Its Capacity becomes the total
// ticket inventory of every event held there.
//
// Fields:
//
//	ID       – stable identifier used by clients.
//	Name     – display name stored on events.
//	Capacity – fixed seating capacity.
//	City     – city the venue is located in.
type Venue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	City     string `json:"city"`
}

var venues = map[string]Venue{
	"jlm-stadium":       {ID: "jlm-stadium", Name: "Jawaharlal Nehru Stadium", Capacity: 60000, City: "Delhi"},
	"nsci-dome":         {ID: "nsci-dome", Name: "NSCI Dome", Capacity: 8000, City: "Mumbai"},
	"phoenix-arena":     {ID: "phoenix-arena", Name: "Phoenix Marketcity Arena", Capacity: 2000, City: "Bengaluru"},
	"shilpakala-vedika": {ID: "shilpakala-vedika", Name: "Shilpakala Vedika", Capacity: 1800, City: "Hyderabad"},
	"kala-academy":      {ID: "kala-academy", Name: "Kala Academy", Capacity: 950, City: "Panaji"},
	"music-academy":     {ID: "music-academy", Name: "The Music Academy", Capacity: 1600, City: "Chennai"},
	"nazrul-mancha":     {ID: "nazrul-mancha", Name: "Nazrul Mancha", Capacity: 3500, City: "Kolkata"},
	"blue-frog":         {ID: "blue-frog", Name: "Blue Frog", Capacity: 400, City: "Pune"},
}

// LookupVenue returns the venue with the given id or ErrNotFound.
func LookupVenue(id string) (Venue, error) {
	v, ok := venues[id]
	if !ok {
		return Venue{}, fmt.Errorf("%w: venue %q", ErrNotFound, id)
	}
	return v, nil
}

// Venues returns the whole catalog ordered by name.
func Venues() []Venue {
	out := make([]Venue, 0, len(venues))
	for _, v := range venues {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
