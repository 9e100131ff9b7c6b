// Package server contains the full set of handler functions and routes
// supported by the http api
package server

import (
	"os"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbd54566975/did-service/config"
	"github.com/tbd54566975/did-service/pkg/server/framework"
	"github.com/tbd54566975/did-service/pkg/server/middleware"
	"github.com/tbd54566975/did-service/pkg/server/router"
	"github.com/tbd54566975/did-service/pkg/service"
	svcframework "github.com/tbd54566975/did-service/pkg/service/framework"
)

const (
	HealthPrefix    = "/health"
	ReadinessPrefix = "/readiness"
	V1Prefix        = "/v1"
	DIDsPrefix      = "/dids"
	CreatedPrefix   = "/created"
	ResolverPrefix  = "/resolver"
	ImportPrefix    = "/import"
	KeyStorePrefix  = "/keys"
	SwaggerPrefix   = "/swagger/*any"
)

// DIDServer exposes all dependencies needed to run a http server and all its services
type DIDServer struct {
	*config.ServerConfig
	*service.DIDService
	*framework.Server
}

// NewDIDServer does two things: instantiates all service and registers their HTTP bindings
func NewDIDServer(shutdown chan os.Signal, cfg config.DIDServerConfig) (*DIDServer, error) {
	// creates an HTTP server from the framework, and wrap it to extend it for the DID service
	engine := setUpEngine(cfg.Server, shutdown)
	httpServer := framework.NewServer(cfg.Server, engine)
	didService, err := service.InstantiateDIDService(cfg.Services)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "unable to instantiate did service")
	}

	// service-level routers
	engine.GET(HealthPrefix, router.Health)
	engine.GET(ReadinessPrefix, router.Readiness(didService.GetServices()))
	engine.GET(SwaggerPrefix, router.Swagger)

	// register all v1 routers
	v1 := engine.Group(V1Prefix)
	if err = DecentralizedIdentityAPI(v1, didService.DID); err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "unable to instantiate DID API")
	}
	if err = KeyStoreAPI(v1, didService.KeyStore); err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "unable to instantiate KeyStore API")
	}

	return &DIDServer{
		Server:       httpServer,
		DIDService:   didService,
		ServerConfig: &cfg.Server,
	}, nil
}

// setUpEngine creates the gin engine and sets up the middleware based on config
func setUpEngine(cfg config.ServerConfig, shutdown chan os.Signal) *gin.Engine {
	switch cfg.Environment {
	case config.EnvironmentDev:
		gin.SetMode(gin.DebugMode)
	case config.EnvironmentTest:
		gin.SetMode(gin.TestMode)
	case config.EnvironmentProd:
		gin.SetMode(gin.ReleaseMode)
	}

	middlewares := gin.HandlersChain{
		gin.Recovery(),
		otelgin.Middleware(config.ServiceName),
		middleware.Logger(logrus.StandardLogger()),
		middleware.Errors(shutdown),
		middleware.Metrics(),
	}
	if cfg.EnableAllowAllCORS {
		middlewares = append(middlewares, middleware.CORS())
	}

	// set up engine and middleware
	engine := gin.New()
	// DIDs in path parameters arrive percent-encoded; did:web ids carry encoded ports (%3A) that must survive
	engine.UseRawPath = true
	engine.UnescapePathValues = true
	engine.Use(middlewares...)
	return engine
}

// DecentralizedIdentityAPI registers all HTTP router for the DID Service
func DecentralizedIdentityAPI(rg *gin.RouterGroup, service svcframework.Service) (err error) {
	didRouter, err := router.NewDIDRouter(service)
	if err != nil {
		return sdkutil.LoggingErrorMsg(err, "creating DID router")
	}

	didAPI := rg.Group(DIDsPrefix)
	didAPI.GET("", didRouter.GetDIDMethods)
	didAPI.PUT("/:method", didRouter.CreateDIDByMethod)
	didAPI.GET(CreatedPrefix, didRouter.ListDIDs)
	didAPI.GET(CreatedPrefix+"/:id", didRouter.GetDID)
	didAPI.PUT(CreatedPrefix+"/:id", didRouter.UpdateDID)
	didAPI.DELETE(CreatedPrefix+"/:id", didRouter.DeleteDID)
	didAPI.GET(ResolverPrefix+"/:id", didRouter.ResolveDID)
	didAPI.POST(ImportPrefix+"/:id", didRouter.ImportKeys)
	return
}

// KeyStoreAPI registers all HTTP router for the key store
func KeyStoreAPI(rg *gin.RouterGroup, service svcframework.Service) (err error) {
	keyStoreRouter, err := router.NewKeyStoreRouter(service)
	if err != nil {
		return sdkutil.LoggingErrorMsg(err, "creating key store router")
	}

	keyStoreAPI := rg.Group(KeyStorePrefix)
	keyStoreAPI.PUT("", keyStoreRouter.GenerateKey)
	keyStoreAPI.POST("/import", keyStoreRouter.ImportKey)
	keyStoreAPI.GET("/:id", keyStoreRouter.GetKeyDetails)
	return
}
