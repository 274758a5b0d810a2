package domain

// MergeReport counts what the merge kept and what it silently dropped.
type MergeReport struct {
	PopulationRecords   int           `json:"population_records"`
	DuplicatePopulation int           `json:"duplicate_population"`
	GeoUnmatched        int           `json:"geo_unmatched"`
	StationUnmatched    int           `json:"station_unmatched"`
	Incomplete          int           `json:"incomplete"`
	MissingByField      map[Field]int `json:"missing_by_field,omitempty"`
	Retained            int           `json:"retained"`
}

// Dropped returns the number of keys or records that did not reach the output.
// Collapsed duplicate population rows count, matching the cities_dropped
// metric's duplicate reason.
func (r MergeReport) Dropped() int {
	return r.DuplicatePopulation + r.GeoUnmatched + r.StationUnmatched + r.Incomplete
}

// Merge joins the three source record lists on the normalized city name.
//
// Population records establish the key universe, last write wins. Geo and
// station records only augment keys that already exist. Entries lacking any
// of the required fields are dropped. A nil stations slice means the station
// source is disabled; callers control that through required.
func Merge(pop []RawCityRecord, geo []RawGeoRecord, stations []RawStationRecord, required []Field) (map[string]CityRecord, MergeReport) {
	var report MergeReport
	merged := make(map[string]CityRecord, len(pop))

	for _, p := range pop {
		key := NormalizeCityName(p.CityName)
		if key == "" {
			continue
		}
		report.PopulationRecords++
		rec, exists := merged[key]
		if exists {
			report.DuplicatePopulation++
		}
		rec.Name = key
		rec.Population = p.Population
		merged[key] = rec
	}

	for _, g := range geo {
		key := NormalizeCityName(g.CityName)
		rec, ok := merged[key]
		if !ok {
			report.GeoUnmatched++
			continue
		}
		rec.Latitude = g.Latitude
		rec.Longitude = g.Longitude
		merged[key] = rec
	}

	for _, s := range stations {
		key := NormalizeCityName(s.CityName)
		rec, ok := merged[key]
		if !ok {
			report.StationUnmatched++
			continue
		}
		rec.TrainStation = s.StationName
		rec.Code = s.Code
		merged[key] = rec
	}

	for key, rec := range merged {
		missing := rec.Missing(required)
		if len(missing) == 0 {
			continue
		}
		delete(merged, key)
		report.Incomplete++
		if report.MissingByField == nil {
			report.MissingByField = make(map[Field]int)
		}
		for _, f := range missing {
			report.MissingByField[f]++
		}
	}

	report.Retained = len(merged)
	return merged, report
}
