// Package console prints merged city records to a writer, one block or JSON
// line per city.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/city-data-etl/internal/domain"
	"github.com/couchcryptid/city-data-etl/internal/observability"
)

const sinkName = "console"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Printer is a sink that writes records to w. A row that fails to write is
// logged and skipped; Emit never aborts.
type Printer struct {
	w           io.Writer
	format      string
	weatherOnly bool
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewPrinter creates a console sink. When weatherOnly is set, cities without
// a weather id are left out.
func NewPrinter(w io.Writer, format string, weatherOnly bool, logger *slog.Logger, metrics *observability.Metrics) *Printer {
	return &Printer{w: w, format: format, weatherOnly: weatherOnly, logger: logger, metrics: metrics}
}

func (p *Printer) Name() string { return sinkName }

// Emit writes each city as a single Write call.
func (p *Printer) Emit(ctx context.Context, cities []domain.CityRecord) error {
	for _, rec := range cities {
		if ctx.Err() != nil {
			return nil
		}
		row := domain.ToRow(rec)
		if p.weatherOnly && row.CityID == nil {
			p.metrics.SinkRows.WithLabelValues(sinkName, "skipped").Inc()
			continue
		}
		var buf bytes.Buffer
		var err error
		if p.format == FormatJSON {
			err = json.NewEncoder(&buf).Encode(row)
		} else {
			writeText(&buf, row)
		}
		if err == nil {
			_, err = p.w.Write(buf.Bytes())
		}
		if err != nil {
			p.logger.Warn("console write failed, skipping row", "city", rec.Name, "error", err)
			p.metrics.SinkRows.WithLabelValues(sinkName, "failed").Inc()
			continue
		}
		p.metrics.SinkRows.WithLabelValues(sinkName, "written").Inc()
	}
	return nil
}

func writeText(buf *bytes.Buffer, row domain.CityRow) {
	if row.CityID != nil {
		fmt.Fprintf(buf, "City ID: %d\n", *row.CityID)
	}
	fmt.Fprintf(buf, "City: %s\n", row.CityName)
	fmt.Fprintf(buf, "Population: %s\n", formatInt(row.Population))
	fmt.Fprintf(buf, "Latitude: %s\n", formatFloat(row.Latitude))
	fmt.Fprintf(buf, "Longitude: %s\n", formatFloat(row.Longitude))
	if row.Temperature != nil {
		fmt.Fprintf(buf, "Temperature: %s\n", formatFloat(row.Temperature))
		fmt.Fprintf(buf, "Humidity: %s\n", formatFloat(row.Humidity))
		fmt.Fprintf(buf, "Wind Speed: %s\n", formatFloat(row.WindSpeed))
	}
	if row.WeatherConditions != nil {
		fmt.Fprintf(buf, "Weather Conditions: %s\n", *row.WeatherConditions)
	}
	if row.TrainStation != nil {
		fmt.Fprintf(buf, "Train Station: %s\n", *row.TrainStation)
	}
	if row.Code != nil {
		fmt.Fprintf(buf, "Station Code: %s\n", *row.Code)
	}
	buf.WriteByte('\n')
}

func formatInt(v *int64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
