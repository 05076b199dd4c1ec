// Copyright (c) 2025 Fabtrak Systems, Inc. All rights reserved.

package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLServer = "sqlserver"
	DriverMySQL     = "mysql"
)

// Config holds all configuration for the export agent.
type Config struct {
	// Database connection
	Driver     string // "sqlserver" (default) or "mysql"
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Optional: fetch the DB password from AWS Secrets Manager instead
	DBSecretsManagerSecret string // secret name, e.g. "prod/trace-export/db"
	DBSecretsRegion        string

	// Source tables
	ProductTable string // Default: FinalProducts
	ResultsTable string // Default: FinalWithResults
	ActionsTable string // Default: actions

	// Export loop
	IntervalSeconds int    // Default: 60
	BatchSize       int    // Default: 100
	MarkerFile      string // path of the last-exported-id file
	OutputDir       string // where CSV snapshots are written

	// Logging
	LogDir string // Default: /tmp

	// Optional: mirror finished snapshots to S3
	S3Bucket  string
	S3Prefix  string // Default: trace-export
	AWSRegion string

	// Output control
	Debug  bool
	Stdout bool // log to stdout instead of a file
}

// LoadConfig loads configuration from CLI flags, environment variables, and YAML file.
// Priority: CLI flags > environment variables > YAML file > defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	// CLI flags
	driver := flag.String("driver", "", "Database driver: sqlserver or mysql (default: sqlserver)")
	dbHost := flag.String("db-host", "", "Database host")
	dbPort := flag.Int("db-port", 0, "Database port (default: 1433 for sqlserver, 3306 for mysql)")
	dbName := flag.String("db-name", "", "Database name")
	dbUser := flag.String("db-user", "", "Database username")
	dbPassword := flag.String("db-password", "", "Database password")
	dbAuth := flag.String("db-auth", "", "Database auth file path (JSON with user and password)")
	dbSecret := flag.String("db-secret", "", "AWS Secrets Manager secret name for the DB password (optional)")
	dbSecretsRegion := flag.String("db-secret-region", "", "AWS region for Secrets Manager")
	productTable := flag.String("product-table", "", "Product source table (default: FinalProducts)")
	resultsTable := flag.String("results-table", "", "Measurement results table (default: FinalWithResults)")
	actionsTable := flag.String("actions-table", "", "Action catalog table (default: actions)")
	interval := flag.Int("interval", 0, "Polling interval in seconds (default: 60)")
	batchSize := flag.Int("batch-size", 0, "Max rows fetched per cycle (default: 100)")
	markerFile := flag.String("marker-file", "", "Path of the last-exported-id marker file")
	outputDir := flag.String("output-dir", "", "Directory for generated CSV files")
	logDir := flag.String("log-dir", "", "Directory for the activity log (default: /tmp)")
	s3Bucket := flag.String("s3-bucket", "", "S3 bucket for mirroring CSV snapshots (optional)")
	s3Prefix := flag.String("s3-prefix", "", "S3 key prefix (default: trace-export)")
	awsRegion := flag.String("aws-region", "", "AWS region for S3 mirroring")
	configFile := flag.String("config-file", "exporter-config.yaml", "Config file path (default: exporter-config.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	stdout := flag.Bool("stdout", false, "Log to stdout instead of a file")

	flag.Parse()

	// Load from YAML file if it exists
	if *configFile != "" {
		if err := loadFromYAML(cfg, *configFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnv(cfg)

	// Override with CLI flags (highest priority)
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *dbHost != "" {
		cfg.DBHost = *dbHost
	}
	if *dbPort > 0 {
		cfg.DBPort = *dbPort
	}
	if *dbName != "" {
		cfg.DBName = *dbName
	}
	if *dbUser != "" {
		cfg.DBUser = *dbUser
	}
	if *dbPassword != "" {
		cfg.DBPassword = *dbPassword
	}
	if *dbAuth != "" {
		if err := cfg.ReadDBAuth(*dbAuth); err != nil {
			return nil, fmt.Errorf("failed to read DB auth file: %w", err)
		}
	}
	if *dbSecret != "" {
		cfg.DBSecretsManagerSecret = *dbSecret
	}
	if *dbSecretsRegion != "" {
		cfg.DBSecretsRegion = *dbSecretsRegion
	}
	if *productTable != "" {
		cfg.ProductTable = *productTable
	}
	if *resultsTable != "" {
		cfg.ResultsTable = *resultsTable
	}
	if *actionsTable != "" {
		cfg.ActionsTable = *actionsTable
	}
	if *interval > 0 {
		cfg.IntervalSeconds = *interval
	}
	if *batchSize > 0 {
		cfg.BatchSize = *batchSize
	}
	if *markerFile != "" {
		cfg.MarkerFile = *markerFile
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *s3Bucket != "" {
		cfg.S3Bucket = *s3Bucket
	}
	if *s3Prefix != "" {
		cfg.S3Prefix = *s3Prefix
	}
	if *awsRegion != "" {
		cfg.AWSRegion = *awsRegion
	}
	if *debug {
		cfg.Debug = true
	}
	if *stdout {
		cfg.Stdout = true
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills in default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLServer
	}
	if c.DBPort == 0 {
		if c.Driver == DriverMySQL {
			c.DBPort = 3306
		} else {
			c.DBPort = 1433
		}
	}
	if c.ProductTable == "" {
		c.ProductTable = "FinalProducts"
	}
	if c.ResultsTable == "" {
		c.ResultsTable = "FinalWithResults"
	}
	if c.ActionsTable == "" {
		c.ActionsTable = "actions"
	}
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = 60
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.LogDir == "" {
		c.LogDir = "/tmp"
	}
	if c.S3Prefix == "" {
		c.S3Prefix = "trace-export"
	}
}

// Validate checks required fields. Failures here are fatal at startup.
func (c *Config) Validate() error {
	if c.Driver != DriverSQLServer && c.Driver != DriverMySQL {
		return fmt.Errorf("driver must be %s or %s, got %q", DriverSQLServer, DriverMySQL, c.Driver)
	}
	if c.DBHost == "" {
		return fmt.Errorf("db-host is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("db-name is required")
	}
	if c.MarkerFile == "" {
		return fmt.Errorf("marker-file is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output-dir is required")
	}
	if c.IntervalSeconds < 1 {
		return fmt.Errorf("interval must be at least 1 second, got %d", c.IntervalSeconds)
	}
	if c.DBSecretsManagerSecret != "" && c.DBSecretsRegion == "" {
		return fmt.Errorf("db-secret-region is required when db-secret is set")
	}
	if c.S3Bucket != "" && c.AWSRegion == "" {
		return fmt.Errorf("aws-region is required when s3-bucket is set")
	}
	return nil
}

// loadFromYAML loads configuration from a YAML file.
func loadFromYAML(cfg *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return err
	}

	var yamlCfg struct {
		Driver                 string `yaml:"driver"`
		DBHost                 string `yaml:"db_host"`
		DBPort                 int    `yaml:"db_port"`
		DBName                 string `yaml:"db_name"`
		DBUser                 string `yaml:"db_user"`
		DBPassword             string `yaml:"db_password"`
		DBSecretsManagerSecret string `yaml:"db_secret"`
		DBSecretsRegion        string `yaml:"db_secret_region"`
		ProductTable           string `yaml:"product_table"`
		ResultsTable           string `yaml:"results_table"`
		ActionsTable           string `yaml:"actions_table"`
		IntervalSeconds        int    `yaml:"interval_seconds"`
		BatchSize              int    `yaml:"batch_size"`
		MarkerFile             string `yaml:"marker_file"`
		OutputDir              string `yaml:"output_dir"`
		LogDir                 string `yaml:"log_dir"`
		S3Bucket               string `yaml:"s3_bucket"`
		S3Prefix               string `yaml:"s3_prefix"`
		AWSRegion              string `yaml:"aws_region"`
	}

	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return err
	}

	if yamlCfg.Driver != "" {
		cfg.Driver = yamlCfg.Driver
	}
	if yamlCfg.DBHost != "" {
		cfg.DBHost = yamlCfg.DBHost
	}
	if yamlCfg.DBPort > 0 {
		cfg.DBPort = yamlCfg.DBPort
	}
	if yamlCfg.DBName != "" {
		cfg.DBName = yamlCfg.DBName
	}
	if yamlCfg.DBUser != "" {
		cfg.DBUser = yamlCfg.DBUser
	}
	if yamlCfg.DBPassword != "" {
		cfg.DBPassword = yamlCfg.DBPassword
	}
	if yamlCfg.DBSecretsManagerSecret != "" {
		cfg.DBSecretsManagerSecret = yamlCfg.DBSecretsManagerSecret
	}
	if yamlCfg.DBSecretsRegion != "" {
		cfg.DBSecretsRegion = yamlCfg.DBSecretsRegion
	}
	if yamlCfg.ProductTable != "" {
		cfg.ProductTable = yamlCfg.ProductTable
	}
	if yamlCfg.ResultsTable != "" {
		cfg.ResultsTable = yamlCfg.ResultsTable
	}
	if yamlCfg.ActionsTable != "" {
		cfg.ActionsTable = yamlCfg.ActionsTable
	}
	if yamlCfg.IntervalSeconds > 0 {
		cfg.IntervalSeconds = yamlCfg.IntervalSeconds
	}
	if yamlCfg.BatchSize > 0 {
		cfg.BatchSize = yamlCfg.BatchSize
	}
	if yamlCfg.MarkerFile != "" {
		cfg.MarkerFile = yamlCfg.MarkerFile
	}
	if yamlCfg.OutputDir != "" {
		cfg.OutputDir = yamlCfg.OutputDir
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.S3Bucket != "" {
		cfg.S3Bucket = yamlCfg.S3Bucket
	}
	if yamlCfg.S3Prefix != "" {
		cfg.S3Prefix = yamlCfg.S3Prefix
	}
	if yamlCfg.AWSRegion != "" {
		cfg.AWSRegion = yamlCfg.AWSRegion
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func loadFromEnv(cfg *Config) {
	if val := os.Getenv("TRACE_EXPORT_DRIVER"); val != "" {
		cfg.Driver = val
	}
	if val := os.Getenv("TRACE_EXPORT_DB_HOST"); val != "" {
		cfg.DBHost = val
	}
	if val := os.Getenv("TRACE_EXPORT_DB_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.DBPort = port
		}
	}
	if val := os.Getenv("TRACE_EXPORT_DB_NAME"); val != "" {
		cfg.DBName = val
	}
	if val := os.Getenv("TRACE_EXPORT_DB_USER"); val != "" {
		cfg.DBUser = val
	}
	if val := os.Getenv("TRACE_EXPORT_DB_PASSWORD"); val != "" {
		cfg.DBPassword = val
	}
	if val := os.Getenv("TRACE_EXPORT_DB_SECRET"); val != "" {
		cfg.DBSecretsManagerSecret = val
	}
	if val := os.Getenv("TRACE_EXPORT_DB_SECRET_REGION"); val != "" {
		cfg.DBSecretsRegion = val
	}
	if val := os.Getenv("TRACE_EXPORT_PRODUCT_TABLE"); val != "" {
		cfg.ProductTable = val
	}
	if val := os.Getenv("TRACE_EXPORT_RESULTS_TABLE"); val != "" {
		cfg.ResultsTable = val
	}
	if val := os.Getenv("TRACE_EXPORT_ACTIONS_TABLE"); val != "" {
		cfg.ActionsTable = val
	}
	if val := os.Getenv("TRACE_EXPORT_INTERVAL_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.IntervalSeconds = n
		}
	}
	if val := os.Getenv("TRACE_EXPORT_BATCH_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.BatchSize = n
		}
	}
	if val := os.Getenv("TRACE_EXPORT_MARKER_FILE"); val != "" {
		cfg.MarkerFile = val
	}
	if val := os.Getenv("TRACE_EXPORT_OUTPUT_DIR"); val != "" {
		cfg.OutputDir = val
	}
	if val := os.Getenv("TRACE_EXPORT_LOG_DIR"); val != "" {
		cfg.LogDir = val
	}
	if val := os.Getenv("TRACE_EXPORT_S3_BUCKET"); val != "" {
		cfg.S3Bucket = val
	}
	if val := os.Getenv("TRACE_EXPORT_S3_PREFIX"); val != "" {
		cfg.S3Prefix = val
	}
	if val := os.Getenv("TRACE_EXPORT_AWS_REGION"); val != "" {
		cfg.AWSRegion = val
	}
	if val := os.Getenv("TRACE_EXPORT_DEBUG"); val != "" {
		cfg.Debug = (val == "true" || val == "1")
	}
}

// GetDSN returns the driver-specific connection string.
func (c *Config) GetDSN() string {
	switch c.Driver {
	case DriverMySQL:
		dsn := fmt.Sprintf("tcp(%s:%d)/%s?parseTime=true", c.DBHost, c.DBPort, c.DBName)
		if c.DBUser != "" {
			user := c.DBUser
			if c.DBPassword != "" {
				user += ":" + c.DBPassword
			}
			dsn = user + "@" + dsn
		}
		return dsn
	default:
		// go-mssqldb URL form. The line-side MSSQL instances run with
		// self-signed certificates, hence TrustServerCertificate.
		u := &url.URL{
			Scheme: "sqlserver",
			Host:   fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		}
		if c.DBUser != "" {
			u.User = url.UserPassword(c.DBUser, c.DBPassword)
		}
		q := url.Values{}
		q.Set("database", c.DBName)
		q.Set("TrustServerCertificate", "true")
		u.RawQuery = q.Encode()
		return u.String()
	}
}

// ReadDBAuth reads database credentials from an auth file (JSON format).
func (c *Config) ReadDBAuth(authFile string) error {
	if authFile == "" {
		return nil
	}

	data, err := os.ReadFile(authFile)
	if err != nil {
		return fmt.Errorf("failed to read auth file: %w", err)
	}

	var auth struct {
		User     string `json:"user"`
		Password string `json:"password"`
	}

	if err := json.Unmarshal(data, &auth); err != nil {
		return fmt.Errorf("failed to parse auth file: %w", err)
	}

	c.DBUser = auth.User
	c.DBPassword = auth.Password
	return nil
}
