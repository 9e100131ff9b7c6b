package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Swagger serves the swagger UI and the generated API spec.
func Swagger(c *gin.Context) {
	ginSwagger.WrapHandler(swaggerFiles.Handler)(c)
}
