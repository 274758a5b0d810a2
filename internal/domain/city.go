package domain

// Field names a column of a merged city record. The string values match the
// output column names.
type Field string

const (
	FieldPopulation   Field = "population"
	FieldLatitude     Field = "latitude"
	FieldLongitude    Field = "longitude"
	FieldTrainStation Field = "train_station"
	FieldCode         Field = "code"
)

// RequiredFields returns the completeness set for the active source configuration.
func RequiredFields(stationsEnabled bool) []Field {
	fields := []Field{FieldPopulation, FieldLatitude, FieldLongitude}
	if stationsEnabled {
		fields = append(fields, FieldTrainStation, FieldCode)
	}
	return fields
}

// RawCityRecord is one row scraped from the population tables.
type RawCityRecord struct {
	CityName   string `json:"city_name"`
	Population string `json:"population"` // unparsed, e.g. "3,000,000[2]"
}

// RawGeoRecord is one row scraped from the geocoordinate listing.
type RawGeoRecord struct {
	CityName  string `json:"city_name"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// RawStationRecord is one row scraped from the station listing.
type RawStationRecord struct {
	CityName    string `json:"city_name"`
	StationName string `json:"station_name"`
	Code        string `json:"code"`
}

// Weather holds the enrichment fields folded in from a weather lookup.
type Weather struct {
	ExternalID  int64   `json:"external_weather_id"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"wind_speed"`
	Conditions  string  `json:"weather_conditions"`
}

// CityRecord is the per-city aggregation of all sources. String fields hold the
// raw scraped values; an empty string means the field is absent.
type CityRecord struct {
	Name         string   `json:"city_name"`
	Population   string   `json:"population,omitempty"`
	Latitude     string   `json:"latitude,omitempty"`
	Longitude    string   `json:"longitude,omitempty"`
	TrainStation string   `json:"train_station,omitempty"`
	Code         string   `json:"code,omitempty"`
	Weather      *Weather `json:"weather,omitempty"`
}

// Has reports whether the given field carries a value.
func (r CityRecord) Has(f Field) bool {
	switch f {
	case FieldPopulation:
		return r.Population != ""
	case FieldLatitude:
		return r.Latitude != ""
	case FieldLongitude:
		return r.Longitude != ""
	case FieldTrainStation:
		return r.TrainStation != ""
	case FieldCode:
		return r.Code != ""
	default:
		return false
	}
}

// Missing lists the required fields the record lacks, in the order given.
func (r CityRecord) Missing(required []Field) []Field {
	var missing []Field
	for _, f := range required {
		if !r.Has(f) {
			missing = append(missing, f)
		}
	}
	return missing
}
