package router

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbd54566975/did-service/pkg/server/framework"
	svcframework "github.com/tbd54566975/did-service/pkg/service/framework"
)

type GetReadinessResponse struct {
	Status          svcframework.Status                       `json:"status"`
	ServiceStatuses map[svcframework.Type]svcframework.Status `json:"serviceStatuses"`
}

// Readiness runs a number of application specific checks to see if all the
// relied upon services are healthy. Responds with a 503 if any is not.
func Readiness(services []svcframework.Service) gin.HandlerFunc {
	return readiness{getter: servicesToGet{services}}.ready
}

type readiness struct {
	getter serviceGetter
}

func (r readiness) ready(c *gin.Context) {
	services := r.getter.getServices()
	numServices := len(services)
	readyServices := 0
	statuses := make(map[svcframework.Type]svcframework.Status, numServices)
	for _, s := range services {
		status := s.Status()
		statuses[s.Type()] = status
		if status.IsReady() {
			readyServices++
		}
	}

	var status svcframework.Status
	statusCode := http.StatusOK
	if readyServices < numServices {
		status = svcframework.Status{
			Status:  svcframework.StatusNotReady,
			Message: fmt.Sprintf("out of [%d] service(s), [%d] are ready", numServices, readyServices),
		}
		statusCode = http.StatusServiceUnavailable
	} else {
		status = svcframework.Status{
			Status:  svcframework.StatusReady,
			Message: "all service(s) ready",
		}
	}

	response := GetReadinessResponse{
		Status:          status,
		ServiceStatuses: statuses,
	}
	framework.Respond(c, response, statusCode)
}

// serviceGetter is a dependency of this readiness handler to know which service are available in the server
type serviceGetter interface {
	getServices() []svcframework.Service
}

type servicesToGet struct {
	services []svcframework.Service
}

func (s servicesToGet) getServices() []svcframework.Service {
	return s.services
}
