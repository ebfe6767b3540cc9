package engine

import (
	"outbreak-platform/internal/models"
)

// ImportComponent converts inbound travel flows into the 0-100 import
// pressure signal. Each flow's passenger volume is weighted by its
// origin's risk from the supplied map; unknown origins count as neutral.
// Total volume saturates at the configured ceiling so that a single
// thin-volume route from a hot origin cannot dominate the signal.
//
// riskMap must be the previous epoch's published snapshot. Destination
// risk feeds back into other locations' import pressure only one epoch
// later; the engine never solves the circular dependency simultaneously.
func (e *Engine) ImportComponent(flows []models.FlowRecord, riskMap map[string]float64) float64 {
	if len(flows) == 0 || len(riskMap) == 0 {
		return e.cfg.ImportDefault
	}

	var weighted float64
	var totalPassengers int
	for _, flow := range flows {
		passengers := flow.Passengers
		if passengers < 0 {
			passengers = 0
		}

		originRisk, ok := riskMap[flow.OriginID]
		if !ok {
			originRisk = neutralComponent
		}
		originRisk = clamp(originRisk, 0, 100) / 100

		weighted += float64(passengers) * originRisk
		totalPassengers += passengers
	}

	if totalPassengers == 0 {
		return e.cfg.ImportDefault
	}

	avgImportRisk := weighted / float64(totalPassengers)

	// More inbound volume means more pressure, up to the saturation
	// ceiling.
	volumeFactor := clamp(float64(totalPassengers)/e.cfg.VolumeSaturation, 0, 1)

	component := avgImportRisk * 100 * (0.5 + 0.5*volumeFactor)

	return clamp(component, 0, 100)
}
