package models

import "time"

// FlightSegment is one leg of a flight offer.
type FlightSegment struct {
	CarrierCode   string    `json:"carrier_code"`
	FlightNumber  string    `json:"flight_number"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
}

// FlightOffer is a priced flight option from the flight search provider.
type FlightOffer struct {
	ID            string          `json:"id"`
	Price         float64         `json:"price"`
	Currency      string          `json:"currency"`
	Stops         int             `json:"stops"`
	TotalDuration string          `json:"total_duration,omitempty"`
	Segments      []FlightSegment `json:"segments,omitempty"`
}

// HotelOffer is a priced hotel option from the hotel search provider.
type HotelOffer struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Rating        float64  `json:"rating,omitempty"`
	PricePerNight float64  `json:"price_per_night"`
	Currency      string   `json:"currency"`
	Location      GeoPoint `json:"location"`
	Address       string   `json:"address,omitempty"`
	Amenities     []string `json:"amenities,omitempty"`
}
