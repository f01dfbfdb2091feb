package controller

import (
	"fmt"
	"net/http"

	"github.com/odlevakp/enviro-pi/internal/modules/telemetry/types"
	"github.com/odlevakp/enviro-pi/internal/utils"
)

type statusResponse struct {
	Humidity         float64 `json:"humidity"`
	Pressure         float64 `json:"pressure"`
	TempFromHumidity float64 `json:"temp_from_humidity"`
}

func (c *telemetryControllerImpl) handleStatus(w http.ResponseWriter, r *http.Request) {
	if c.sensor == nil {
		utils.WriteDomainError(w, c.logger, "status", fmt.Errorf("no sensor configured: %w", types.ErrSensorUnavailable))
		return
	}
	m, err := c.sensor.Read(r.Context())
	if err != nil {
		utils.WriteDomainError(w, c.logger, "status", err)
		return
	}
	m = m.Rounded()
	utils.WriteJSON(w, http.StatusOK, statusResponse{
		Humidity:         m.Humidity,
		Pressure:         m.Pressure,
		TempFromHumidity: m.TempFromHumidity,
	})
}

func (c *telemetryControllerImpl) handleCharts(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		utils.WriteDomainError(w, c.logger, "charts", err)
		return
	}
	series, err := c.engine.BuildSeries(r.Context(), window)
	if err != nil {
		utils.WriteDomainError(w, c.logger, "charts", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, series)
}

func (c *telemetryControllerImpl) handleStatistics(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindow(r)
	if err != nil {
		utils.WriteDomainError(w, c.logger, "statistics", err)
		return
	}
	stats, err := c.engine.BuildStatistics(r.Context(), window)
	if err != nil {
		utils.WriteDomainError(w, c.logger, "statistics", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, stats)
}
