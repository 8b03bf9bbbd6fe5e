package battle

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/warcore/internal/battle"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
