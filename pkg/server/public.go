package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nimburion/taskdesk/pkg/config"
	"github.com/nimburion/taskdesk/pkg/observability/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// PublicServer serves the HTML task page and the JSON API.
type PublicServer struct {
	*Server
	engine *gin.Engine
}

// PublicOptions configures NewPublicServer.
type PublicOptions struct {
	HTTP      config.HTTPConfig
	RateLimit config.RateLimitConfig
	// Title is shown on the HTML page.
	Title string
	// Tracing adds a server span per request.
	Tracing bool
}

// NewPublicServer builds the public server. The middleware order is request id, access log,
// recovery, metrics, optional tracing, rate limit, request size, then the optional security
// headers and compression.
func NewPublicServer(opts PublicOptions, tasks TaskService, log logger.Logger) *PublicServer {
	if log == nil {
		log = logger.Nop()
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Task Manager"
	}

	engine := newEngine()
	engine.SetHTMLTemplate(pageTemplate)

	middlewares := []gin.HandlerFunc{
		RequestID(),
		AccessLog(log),
		Recovery(log),
		Metrics(),
	}
	if opts.Tracing {
		middlewares = append(middlewares, Tracing("http-server"))
	}
	if opts.RateLimit.Enabled && opts.RateLimit.RequestsPerSecond > 0 {
		middlewares = append(middlewares, RateLimit(NewTokenBucketLimiter(opts.RateLimit.RequestsPerSecond, opts.RateLimit.Burst)))
	}
	middlewares = append(middlewares, RequestSize(opts.HTTP.MaxRequestSize))
	if opts.HTTP.SecurityHeaders {
		middlewares = append(middlewares, SecurityHeaders())
	}
	if opts.HTTP.Compression {
		middlewares = append(middlewares, Compression(opts.HTTP.CompressionMinSize))
	}
	engine.Use(middlewares...)

	(&pageHandlers{tasks: tasks, title: title}).register(engine)
	(&taskHandlers{tasks: tasks, log: log}).register(engine.Group("/api/v1"))

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "not_found",
			Message:   "route not found",
			RequestID: c.GetString(requestIDKey),
		})
	})

	return &PublicServer{
		Server: NewServer("public", Config{
			Port:         opts.HTTP.Port,
			ReadTimeout:  opts.HTTP.ReadTimeout,
			WriteTimeout: opts.HTTP.WriteTimeout,
			IdleTimeout:  opts.HTTP.IdleTimeout,
		}, engine, log),
		engine: engine,
	}
}

// Engine returns the gin engine for registering extra routes.
func (s *PublicServer) Engine() *gin.Engine {
	return s.engine
}

// Tracing starts a server span per request, continuing any propagated trace context.
func Tracing(tracerName string) gin.HandlerFunc {
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	return func(c *gin.Context) {
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := otel.Tracer(tracerName).Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	return engine
}
