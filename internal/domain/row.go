package domain

// CityRow is the sink-facing form of a merged record with numeric values
// coerced. Nil pointers mean the value is unknown.
type CityRow struct {
	CityID            *int64   `json:"city_id"`
	CityName          string   `json:"city_name"`
	Population        *int64   `json:"population"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	Temperature       *float64 `json:"temperature"`
	Humidity          *float64 `json:"humidity"`
	WindSpeed         *float64 `json:"wind_speed"`
	WeatherConditions *string  `json:"weather_conditions"`
	TrainStation      *string  `json:"train_station"`
	Code              *string  `json:"code"`
}

// ToRow coerces a merged record for output.
func ToRow(rec CityRecord) CityRow {
	row := CityRow{
		CityName:     rec.Name,
		TrainStation: optionalString(rec.TrainStation),
		Code:         optionalString(rec.Code),
	}
	if n, ok := ParsePopulation(rec.Population); ok {
		row.Population = &n
	}
	if v, ok := ParseCoordinate(rec.Latitude); ok {
		row.Latitude = &v
	}
	if v, ok := ParseCoordinate(rec.Longitude); ok {
		row.Longitude = &v
	}
	if w := rec.Weather; w != nil {
		id, temp, hum, wind := w.ExternalID, w.Temperature, w.Humidity, w.WindSpeed
		row.CityID = &id
		row.Temperature = &temp
		row.Humidity = &hum
		row.WindSpeed = &wind
		row.WeatherConditions = optionalString(w.Conditions)
	}
	return row
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
