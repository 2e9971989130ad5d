package dispatcher

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/shottracker/shottracker/internal/dispatcher"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
