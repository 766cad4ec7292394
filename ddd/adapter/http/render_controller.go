package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"manim-service/ddd/application/app"
	"manim-service/ddd/application/cqe"
	"manim-service/pkg/config"
	"manim-service/pkg/errno"
	"manim-service/pkg/manager"
	"manim-service/pkg/middleware"
	"manim-service/pkg/restapi"
)

type RenderControllerPlugin struct{}

func (p *RenderControllerPlugin) Name() string {
	return "renderControllerPlugin"
}

func (p *RenderControllerPlugin) MustCreateController(deps *manager.Dependencies) manager.Controller {
	if deps == nil {
		panic("render controller needs dependencies")
	}
	renderApp, ok := deps.RenderApp.(app.RenderApp)
	if !ok || renderApp == nil {
		panic("render controller needs a RenderApp")
	}
	var limit config.RateLimitConfig
	if deps.Config != nil {
		limit = deps.Config.RateLimit
	}
	return NewRenderController(renderApp, limit)
}

// RenderController serves the start/status/video API. The same routes are
// what a delegating instance calls on a worker.
type RenderController struct {
	renderApp app.RenderApp
	limit     config.RateLimitConfig
}

func NewRenderController(renderApp app.RenderApp, limit config.RateLimitConfig) *RenderController {
	return &RenderController{renderApp: renderApp, limit: limit}
}

func (r *RenderController) RegisterRoutes(router gin.IRouter) {
	g := router.Group("/api/manim")
	{
		g.POST("/start", middleware.RateLimit(r.limit), r.StartJob) // 提交任务
		g.GET("/status", r.GetStatus)                               // 查询状态
		g.GET("/video", r.GetVideo)                                 // 下载成品
	}
}

func (r *RenderController) StartJob(c *gin.Context) {
	var req cqe.StartRenderJobReq
	if err := c.ShouldBindJSON(&req); err != nil {
		restapi.Failed(c, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	if req.ClientID == "" {
		req.ClientID = c.GetString(middleware.ContextClientID)
	}
	res, err := r.renderApp.StartJob(c.Request.Context(), &req)
	if err != nil {
		restapi.Failed(c, err)
		return
	}
	restapi.Success(c, res)
}

func (r *RenderController) GetStatus(c *gin.Context) {
	var q cqe.RenderJobQuery
	_ = c.ShouldBindQuery(&q)
	job, err := r.renderApp.GetJob(c.Request.Context(), q.JobID)
	if err != nil {
		restapi.Failed(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	restapi.Success(c, job)
}

func (r *RenderController) GetVideo(c *gin.Context) {
	var q cqe.RenderJobQuery
	_ = c.ShouldBindQuery(&q)
	video, err := r.renderApp.OpenVideo(c.Request.Context(), q.JobID)
	if err != nil {
		restapi.Failed(c, err)
		return
	}
	defer video.Body.Close()

	contentType := video.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}
	c.DataFromReader(http.StatusOK, video.ContentLength, contentType, video.Body, map[string]string{
		"Cache-Control": "no-store",
	})
}
