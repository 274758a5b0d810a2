// Package domain models the per-city records assembled from scraped sources.
//
// # Data Sources
//
// Three HTML sources are scraped independently and joined by city name:
//
//	Population:  Wikipedia "List of cities in India by population" wikitables.
//	             The first table lists the name in column 0 and population in
//	             column 1; later tables shift both one column right.
//	Coordinates: latlong.net category pages (8 pages). Column 0 holds a linked
//	             "City, State" label, columns 1-2 hold latitude and longitude.
//	Stations:    cleartrip station list pages (5 pages, optional). Columns hold
//	             station code, station name, city.
//
// Weather comes from the OpenWeather current-conditions endpoint, queried by
// coordinates after the merge.
//
// # Join Key
//
// [NormalizeCityName] is the only join key. It removes bracketed footnote
// markers ("Mumbai[1]" -> "Mumbai"), cuts "City, State" labels at the first
// comma, and trims whitespace. Every adapter and [Merge] call it, so a key
// produced once normalizes to itself.
//
// There is no fuzzy matching. "New Delhi" and "Delhi" are different cities;
// a spelling mismatch leaves one side without a partner and the completeness
// filter drops it. [MergeReport] counts these drops.
//
// # Merge Semantics
//
//	1. Population records create entries. Duplicates: last write wins.
//	2. Geo records set latitude/longitude on existing entries only.
//	3. Station records set train_station/code on existing entries only.
//	4. Entries missing any field from [RequiredFields] are discarded.
//
// Values stay as scraped strings through the merge. Numeric coercion happens
// at the sink boundary via [ToRow]; population keeps only its digits and an
// empty result is unknown.
//
// # Enrichment
//
// [Enrich] fans out weather lookups with bounded concurrency. A failed lookup
// leaves that city without weather fields and never affects another city.
package domain
