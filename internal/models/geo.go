package models

// GeoBlock represents one resolved geolocation result
type GeoBlock struct {
	City        string   `json:"city" msgpack:"city"`
	Country     string   `json:"country" msgpack:"country"`
	CountryCode string   `json:"country_code" msgpack:"country_code"`
	Postcode    string   `json:"postcode" msgpack:"postcode"`
	Lat         *float64 `json:"lat" msgpack:"lat"`
	Long        *float64 `json:"long" msgpack:"long"`
	ASNumber    uint     `json:"as_number" msgpack:"as_number"`
	ASName      string   `json:"as_name" msgpack:"as_name"`
	Network     string   `json:"network" msgpack:"network"`

	// Error and Message are only set on the placeholder produced for
	// addresses missing from the GeoIP databases.
	Error   bool   `json:"error" msgpack:"-"`
	Message string `json:"message,omitempty" msgpack:"-"`
}

// NewGeoError returns the placeholder block for an address that was not found
func NewGeoError(message string) *GeoBlock {
	return &GeoBlock{Error: true, Message: message}
}

// IsEmpty reports whether no geographic or network field is populated
func (g *GeoBlock) IsEmpty() bool {
	return g.City == "" && g.Country == "" && g.CountryCode == "" && g.Postcode == "" &&
		g.Lat == nil && g.Long == nil && g.ASNumber == 0 && g.ASName == "" && g.Network == ""
}

// HasCoordinates reports whether both latitude and longitude are known
func (g *GeoBlock) HasCoordinates() bool {
	return g.Lat != nil && g.Long != nil
}
