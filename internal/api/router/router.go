package router

import (
	"context"
	"net/http"
	"time"

	"resume-matcher/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
)

// HealthCheck 依赖健康检查，返回错误表示不可用
type HealthCheck func(ctx context.Context) error

// Handlers 路由依赖的全部处理器
type Handlers struct {
	Resume *handler.ResumeHandler
	Jobs   *handler.JobHandler
	Users  *handler.UserHandler
	// Auth 需要登录的路由组使用的中间件
	Auth app.HandlerFunc
	// Checks 以名称区分的健康检查，例如 database
	Checks map[string]HealthCheck
}

// NewServer 创建 hertz 服务器并挂载链路追踪和请求日志中间件
func NewServer(address string, maxRequestBodyBytes int) *server.Hertz {
	tracer, tracingCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize(maxRequestBodyBytes),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracingCfg), RequestLogger())
	return h
}

// RequestLogger 记录每个请求的方法、路径、状态码和耗时
func RequestLogger() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		start := time.Now()
		ctx.Next(c)
		hlog.CtxInfof(c, "%s %s status=%d duration=%s",
			string(ctx.Method()), string(ctx.Path()), ctx.Response.StatusCode(), time.Since(start))
	}
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, handlers Handlers) {
	api := h.Group("/api")

	api.GET("/health", healthHandler(handlers.Checks))
	api.GET("/get_jobs", handlers.Jobs.HandleGetJobs)

	authed := api.Group("")
	if handlers.Auth != nil {
		authed.Use(handlers.Auth)
	}
	authed.POST("/upload-resume", handlers.Resume.HandleUpload)
	authed.GET("/resume-status", handlers.Resume.HandleStatus)
	authed.POST("/sync-user", handlers.Users.HandleSyncUser)
}

func healthHandler(checks map[string]HealthCheck) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		status := http.StatusOK
		details := make(map[string]string, len(checks))
		for name, check := range checks {
			checkCtx, cancel := context.WithTimeout(c, 2*time.Second)
			err := check(checkCtx)
			cancel()
			if err != nil {
				status = http.StatusServiceUnavailable
				details[name] = err.Error()
				continue
			}
			details[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		ctx.JSON(status, utils.H{"status": overall, "checks": details})
	}
}
