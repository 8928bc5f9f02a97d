package archive

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/did-method-hcs/go-didevent/archive")

var (
	EventsAppendedCounter metric.Int64Counter
	EventsRejectedCounter metric.Int64Counter
	ImportCursorGauge     metric.Int64Gauge
)

// source of an appended or rejected event
var (
	SourceImport = attribute.String("source", "import")
	SourceHTTP   = attribute.String("source", "http")
)

func init() {
	var err error
	EventsAppendedCounter, err = meter.Int64Counter("didevent_archive_events_appended",
		metric.WithDescription("Number of event log entries appended to the archive"),
	)
	if err != nil {
		panic(err)
	}
	EventsRejectedCounter, err = meter.Int64Counter("didevent_archive_events_rejected",
		metric.WithDescription("Number of event log entries rejected as invalid or duplicate"),
	)
	if err != nil {
		panic(err)
	}
	ImportCursorGauge, err = meter.Int64Gauge("didevent_archive_import_cursor",
		metric.WithDescription("The most recently committed import line"),
	)
	if err != nil {
		panic(err)
	}
}
