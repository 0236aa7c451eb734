package planner

import (
	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// TripDomain classifies what a query is mostly about, which steers both
// provider fan-out and the prompt.
type TripDomain string

const (
	DomainItinerary TripDomain = "itinerary"
	DomainFlights   TripDomain = "flights"
	DomainHotels    TripDomain = "hotels"
	DomainDining    TripDomain = "dining"
	DomainGeneral   TripDomain = "general"
)

var domainKeywords = []struct {
	keyword string
	domain  TripDomain
}{
	{"flight", DomainFlights},
	{"fly", DomainFlights},
	{"airline", DomainFlights},
	{"airport", DomainFlights},
	{"plane", DomainFlights},

	{"hotel", DomainHotels},
	{"hostel", DomainHotels},
	{"accommodation", DomainHotels},
	{"room", DomainHotels},
	{"stay", DomainHotels},
	{"resort", DomainHotels},
	{"guesthouse", DomainHotels},

	{"restaurant", DomainDining},
	{"food", DomainDining},
	{"eat", DomainDining},
	{"dinner", DomainDining},
	{"lunch", DomainDining},
	{"breakfast", DomainDining},
	{"cuisine", DomainDining},
	{"cafe", DomainDining},

	{"itinerary", DomainItinerary},
	{"trip", DomainItinerary},
	{"plan", DomainItinerary},
	{"days", DomainItinerary},
	{"week", DomainItinerary},
	{"visit", DomainItinerary},
	{"tour", DomainItinerary},
	{"journey", DomainItinerary},
	{"schedule", DomainItinerary},
}

// DomainDetector matches query keywords against the domain vocabulary.
type DomainDetector struct {
	matcher ahocorasick.AhoCorasick
}

func NewDomainDetector() *DomainDetector {
	patterns := make([]string, len(domainKeywords))
	for i, kw := range domainKeywords {
		patterns[i] = kw.keyword
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})

	return &DomainDetector{matcher: builder.Build(patterns)}
}

// Detect returns the dominant domain of the query. Itinerary wins ties
// since a trip plan subsumes the other domains.
func (d *DomainDetector) Detect(query string) TripDomain {
	counts := make(map[TripDomain]int)
	for _, match := range d.matcher.FindAll(query) {
		counts[domainKeywords[match.Pattern()].domain]++
	}

	if len(counts) == 0 {
		return DomainGeneral
	}

	best := DomainItinerary
	bestCount := counts[DomainItinerary]
	for _, domain := range []TripDomain{DomainFlights, DomainHotels, DomainDining} {
		if counts[domain] > bestCount {
			best = domain
			bestCount = counts[domain]
		}
	}
	return best
}
