package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mdesk/internal/middleware"
)

type RouterDeps struct {
	Convert        *ConvertHandler
	Images         *ImageHandler
	Documents      *DocumentHandler
	Files          *FileHandler
	UploadInterval time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/factory/html_to_md", deps.Convert.HTMLToMarkdown)
	api.POST("/save/dropbox/image", middleware.RateLimit(deps.UploadInterval, rejectUpload), deps.Images.Upload)

	api.GET("/metadata/*path", deps.Documents.Metadata)
	api.GET("/documents/*path", deps.Documents.Get)
	api.GET("/files/:key", deps.Files.Get)
}
