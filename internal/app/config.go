package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/observability"
)

// TestModeEnv makes both binaries return before binding listeners or dialing Redis.
const TestModeEnv = "ULMS_TEST_MODE"

// InTestMode reads TestModeEnv on every call.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}

// Queue drivers.
const (
	QueueDriverAsynq  = "asynq"
	QueueDriverMemory = "memory"
)

// Config holds runtime configuration for the gateway and worker.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":3000"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout   time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"15s"`
	RateLimit         int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"600"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	AuthGRPCURL       string        `envconfig:"AUTH_GRPC_URL" default:"localhost:50051"`
	UserGRPCURL       string        `envconfig:"USER_GRPC_URL" default:"localhost:50052"`
	CourseGRPCURL     string        `envconfig:"COURSE_GRPC_URL" default:"localhost:50053"`
	AssignmentGRPCURL string        `envconfig:"ASSIGNMENT_GRPC_URL" default:"localhost:50054"`
	ExamGRPCURL       string        `envconfig:"EXAM_GRPC_URL" default:"localhost:50055"`
	ProctorGRPCURL    string        `envconfig:"PROCTOR_GRPC_URL" default:"localhost:50056"`
	AssistantGRPCURL  string        `envconfig:"ASSISTANT_GRPC_URL" default:"localhost:50057"`
	AuthTimeout       time.Duration `envconfig:"BACKEND_AUTH_TIMEOUT" default:"5s"`

	RedisAddr         string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	QueueDriver       string `envconfig:"QUEUE_DRIVER" default:"asynq"`
	QueueConcurrency  int    `envconfig:"QUEUE_CONCURRENCY" default:"5"`
	WorkerMetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
	IngestBuffer      int    `envconfig:"PROCTORING_INGEST_BUFFER" default:"256"`

	ProctoringAPIURL         string `envconfig:"PROCTORING_API_URL" required:"true"`
	ProctoringAuthToken      string `envconfig:"PROCTORING_AUTH_TOKEN"`
	ProctoringReferenceImage string `envconfig:"PROCTORING_REFERENCE_IMAGE" default:"reference.jpg"`

	OTelEndpoint   string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure   bool          `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`
	OTelTimeout    time.Duration `envconfig:"OTEL_EXPORTER_OTLP_TIMEOUT" default:"10s"`
	OTelService    string        `envconfig:"OTEL_SERVICE_NAME" default:"ulms-gateway"`
	OTelSampler    string        `envconfig:"OTEL_TRACES_SAMPLER" default:"parentbased_always_on"`
	OTelSamplerArg string        `envconfig:"OTEL_TRACES_SAMPLER_ARG"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.QueueDriver != QueueDriverAsynq && c.QueueDriver != QueueDriverMemory {
		return fmt.Errorf("queue driver %q not supported", c.QueueDriver)
	}
	if u, err := url.Parse(c.ProctoringAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("proctoring api url must be an absolute URL")
	}
	if c.AuthTimeout <= 0 {
		return errors.New("backend auth timeout must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// BackendEndpoints maps every backend to its configured address.
func (c *Config) BackendEndpoints() []backend.Endpoint {
	return backend.Catalog(map[backend.Name]string{
		backend.Identity:   c.AuthGRPCURL,
		backend.Users:      c.UserGRPCURL,
		backend.Courses:    c.CourseGRPCURL,
		backend.Assignment: c.AssignmentGRPCURL,
		backend.Exams:      c.ExamGRPCURL,
		backend.Proctor:    c.ProctorGRPCURL,
		backend.Assistant:  c.AssistantGRPCURL,
	})
}

// RedisOpts returns the Asynq connection options.
func (c *Config) RedisOpts() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: c.RedisAddr}
}

// Tracing returns the OpenTelemetry exporter settings.
func (c *Config) Tracing() observability.TracingConfig {
	return observability.TracingConfig{
		ServiceName: c.OTelService,
		Endpoint:    c.OTelEndpoint,
		Insecure:    c.OTelInsecure,
		Timeout:     c.OTelTimeout,
		Sampler:     c.OTelSampler,
		SamplerArg:  c.OTelSamplerArg,
	}
}
