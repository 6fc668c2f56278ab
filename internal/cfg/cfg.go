package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	QueueStore    string
	LogStore      string
	DatabaseURL   string
	SlowQueryMS   int
	AWSRegion     string
	AWSEndpoint   string
	AWSAccessKey  string
	AWSSecretKey  string
	QueueTable    string
	FeedbackTable string
	LogBucket     string
	LogPrefix     string

	PendingPageSize     int
	StoreTimeoutSeconds int
	ScanConcurrency     int
	MaxWindowDays       int

	SlackWebhookURL string
	DemoEmitterURL  string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")

	fs.StringVar(&c.QueueStore, "queue-store", StoreMemory, "review queue and feedback backend (memory|dynamodb|postgres)")
	fs.StringVar(&c.LogStore, "log-store", StoreMemory, "decision log backend (memory|s3)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (required for queue-store=postgres)")
	fs.IntVar(&c.SlowQueryMS, "db-slow-query-ms", 500, "log database queries slower than this many milliseconds (0 = log all)")
	fs.StringVar(&c.AWSRegion, "aws-region", "", "AWS region (empty = SDK default chain)")
	fs.StringVar(&c.AWSEndpoint, "aws-endpoint", "", "override endpoint for S3 and DynamoDB (local emulators)")
	fs.StringVar(&c.AWSAccessKey, "aws-access-key-id", "", "static AWS access key (empty = SDK default chain)")
	fs.StringVar(&c.AWSSecretKey, "aws-secret-access-key", "", "static AWS secret key, used with aws-access-key-id")
	fs.StringVar(&c.QueueTable, "queue-table", "", "DynamoDB review queue table")
	fs.StringVar(&c.FeedbackTable, "feedback-table", "", "DynamoDB feedback table")
	fs.StringVar(&c.LogBucket, "log-bucket", "", "bucket holding decision log objects")
	fs.StringVar(&c.LogPrefix, "log-prefix", "", "key prefix of decision log partitions")

	fs.IntVar(&c.PendingPageSize, "pending-page-size", 100, "max pending items returned per listing (1..1000)")
	fs.IntVar(&c.StoreTimeoutSeconds, "store-timeout-seconds", 5, "per-call timeout for store operations (1..60)")
	fs.IntVar(&c.ScanConcurrency, "scan-concurrency", 16, "max concurrent decision log reads (1..256)")
	fs.IntVar(&c.MaxWindowDays, "max-window-days", 90, "max days a metrics window or history range may span (1..366)")

	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for resolution notifications")
	fs.StringVar(&c.DemoEmitterURL, "demo-emitter-url", "", "base URL of the demo traffic generator (empty = demo routes disabled)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	switch c.QueueStore {
	case StoreMemory:
	case StoreDynamoDB:
		if c.QueueTable == "" || c.FeedbackTable == "" {
			errs = append(errs, errors.New("QUEUE_TABLE and FEEDBACK_TABLE are required for QUEUE_STORE=dynamodb"))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for QUEUE_STORE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid QUEUE_STORE %q (must be memory, dynamodb or postgres)", c.QueueStore))
	}

	switch c.LogStore {
	case StoreMemory:
	case StoreS3:
		if c.LogBucket == "" {
			errs = append(errs, errors.New("LOG_BUCKET is required for LOG_STORE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_STORE %q (must be memory or s3)", c.LogStore))
	}

	if c.SlowQueryMS < 0 {
		errs = append(errs, fmt.Errorf("invalid DB_SLOW_QUERY_MS %d (must be >= 0)", c.SlowQueryMS))
	}

	// static credentials come as a pair
	if (c.AWSAccessKey == "") != (c.AWSSecretKey == "") {
		errs = append(errs, errors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set together"))
	}

	if c.PendingPageSize < 1 || c.PendingPageSize > 1000 {
		errs = append(errs, fmt.Errorf("invalid PENDING_PAGE_SIZE %d (must be 1..1000)", c.PendingPageSize))
	}
	if c.StoreTimeoutSeconds < 1 || c.StoreTimeoutSeconds > 60 {
		errs = append(errs, fmt.Errorf("invalid STORE_TIMEOUT_SECONDS %d (must be 1..60)", c.StoreTimeoutSeconds))
	}
	if c.ScanConcurrency < 1 || c.ScanConcurrency > 256 {
		errs = append(errs, fmt.Errorf("invalid SCAN_CONCURRENCY %d (must be 1..256)", c.ScanConcurrency))
	}
	if c.MaxWindowDays < 1 || c.MaxWindowDays > 366 {
		errs = append(errs, fmt.Errorf("invalid MAX_WINDOW_DAYS %d (must be 1..366)", c.MaxWindowDays))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
