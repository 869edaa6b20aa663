package httpserver

import (
	"time"

	"github.com/opsremedy/remedy-controller/internal/infra/appstate"
	"github.com/opsremedy/remedy-controller/internal/logic/controller"
)

// appstater is an internal interface for application state and snapshot access.
type appstater interface {
	GetState() appstate.State
	IsHealthy() bool
	IsReady() bool
	GetUptime() time.Duration
	GetStartTime() time.Time
	Status() appstate.StatusSnapshot
}

// incidentReader serves the recent audit trail.
type incidentReader interface {
	Recent(limit int) []controller.ActionRecord
}
