package cache

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/OCAP2/warcore/internal/cache"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
