package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

/*
Config is the configuration for the application.

Contains the configuration for the server, the vector store connection, the ingestion
pipeline, the projection stage and the outputs.
*/
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Pinecone   PineconeConfig   `json:"pinecone" yaml:"pinecone"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline"`
	Projection ProjectionConfig `json:"projection" yaml:"projection"`
	Output     OutputConfig     `json:"output" yaml:"output"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	LogLevel   string           `json:"log_level" yaml:"log_level"`
}

/*
ServerConfig is the configuration for the server.
*/
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port string `json:"port" yaml:"port"`
}

/*
PineconeConfig holds the credentials and endpoints of the hosted vector store.
*/
type PineconeConfig struct {
	APIKey    string `json:"api_key" yaml:"api_key"`
	Index     string `json:"index" yaml:"index"`
	Namespace string `json:"namespace" yaml:"namespace"`
	// data-plane host; resolved through the control plane when empty
	Host string `json:"host" yaml:"host"`
	// control-plane base URL
	ControlURL string `json:"control_url" yaml:"control_url"`
	APIVersion string `json:"api_version" yaml:"api_version"`
	// request timeout [seconds]
	Timeout int `json:"timeout" yaml:"timeout"`
	// 0 disables rate limiting
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

/*
PipelineConfig is the configuration for the ingestion pipeline.
*/
type PipelineConfig struct {
	PageSize     int          `json:"page_size" yaml:"page_size"`
	BatchSize    int          `json:"batch_size" yaml:"batch_size"`
	Workers      int          `json:"workers" yaml:"workers"`
	VectorPolicy VectorPolicy `json:"vector_policy" yaml:"vector_policy"`
	Dimensions   int          `json:"dimensions" yaml:"dimensions"`
	Projection   bool         `json:"projection" yaml:"projection"`
}

/*
ProjectionConfig is the configuration for the manifold learner.
*/
type ProjectionConfig struct {
	Neighbors    int          `json:"neighbors" yaml:"neighbors"`
	MinDist      float64      `json:"min_dist" yaml:"min_dist"`
	Epochs       int          `json:"epochs" yaml:"epochs"`
	Seed         int64        `json:"seed" yaml:"seed"`
	DistanceType DistanceType `json:"distance_type" yaml:"distance_type"`
}

/*
OutputConfig is the configuration for the cached delimited file.
*/
type OutputConfig struct {
	Path      string `json:"path" yaml:"path"`
	Delimiter string `json:"delimiter" yaml:"delimiter"`
}

/*
StorageConfig is the configuration for the optional object storage upload.
*/
type StorageConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	Prefix    string `json:"prefix" yaml:"prefix"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
}

/*
DistanceType is the type of distance function.
*/
type DistanceType int

const (
	DistanceTypeEuclidean DistanceType = iota
	DistanceTypeCosine
	DistanceTypeManhattan
	DistanceTypeHamming
)

/*
VectorPolicy decides what happens to records that come back without vector values.
*/
type VectorPolicy string

const (
	// records without values are dropped with a warning
	VectorPolicyRequire VectorPolicy = "require"
	// records without values are kept with zero coordinates
	VectorPolicyAllowMissing VectorPolicy = "allow-missing"
)

var (
	ErrMissingAPIKey = errors.New("PINECONE_API_KEY is not set")
	ErrMissingIndex  = errors.New("PINECONE_INDEX is not set")
)

/*
Default config
*/
func DefaultConfig() *Config {
	return &Config{
		// server configuration
		Server: ServerConfig{
			Host: "localhost",
			Port: "5000",
		},
		// vector store configuration
		Pinecone: PineconeConfig{
			ControlURL: "https://api.pinecone.io",
			APIVersion: "2024-07",
			Timeout:    30,
		},
		// pipeline configuration
		Pipeline: PipelineConfig{
			PageSize:     100,
			BatchSize:    100,
			Workers:      1,
			VectorPolicy: VectorPolicyRequire,
			Dimensions:   3,
			Projection:   true,
		},
		// projection configuration
		Projection: ProjectionConfig{
			Neighbors:    15,
			MinDist:      0.1,
			Epochs:       200,
			Seed:         42,
			DistanceType: DistanceTypeEuclidean,
		},
		// output configuration
		Output: OutputConfig{
			Path:      "pinecone_embedding_3d.csv",
			Delimiter: ",",
		},
		// logging configuration
		LogLevel: "warn",
	}
}

/*
LoadFromFile loads the configuration from a JSON or YAML file.

The format is picked from the file extension; anything other than .yaml/.yml is read as JSON.
*/
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return config, nil
}

/*
LoadFromEnv loads the configuration from the environment variables.
*/
func LoadFromEnv() (*Config, error) {
	config := DefaultConfig()
	ApplyEnv(config)
	return config, nil
}

/*
ApplyEnv overrides the configuration with values from the environment variables.

Unparseable numeric values are ignored and the previous value is kept.
*/
func ApplyEnv(config *Config) {
	// Vector store credentials
	if apiKey := os.Getenv("PINECONE_API_KEY"); apiKey != "" {
		config.Pinecone.APIKey = apiKey
	}
	if index := os.Getenv("PINECONE_INDEX"); index != "" {
		config.Pinecone.Index = index
	}
	if namespace := os.Getenv("PINECONE_NAMESPACE"); namespace != "" {
		config.Pinecone.Namespace = namespace
	}
	if host := os.Getenv("PINECONE_HOST"); host != "" {
		config.Pinecone.Host = host
	}

	// Server config
	if host := os.Getenv("VIZ_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("VIZ_PORT"); port != "" {
		config.Server.Port = port
	}

	// Pipeline config
	if batchStr := os.Getenv("VIZ_BATCH_SIZE"); batchStr != "" {
		if batch, err := strconv.Atoi(batchStr); err == nil {
			config.Pipeline.BatchSize = batch
		}
	}
	if workersStr := os.Getenv("VIZ_WORKERS"); workersStr != "" {
		if workers, err := strconv.Atoi(workersStr); err == nil {
			config.Pipeline.Workers = workers
		}
	}
	if dimsStr := os.Getenv("VIZ_DIMS"); dimsStr != "" {
		if dims, err := strconv.Atoi(dimsStr); err == nil {
			config.Pipeline.Dimensions = dims
		}
	}
	if policy := os.Getenv("VIZ_VECTOR_POLICY"); policy != "" {
		if p, err := ParseVectorPolicy(policy); err == nil {
			config.Pipeline.VectorPolicy = p
		}
	}

	if distance := os.Getenv("VIZ_DISTANCE"); distance != "" {
		var dt DistanceType
		if err := dt.UnmarshalText([]byte(distance)); err == nil {
			config.Projection.DistanceType = dt
		}
	}

	// Output config
	if output := os.Getenv("VIZ_OUTPUT"); output != "" {
		config.Output.Path = output
	}
	if level := os.Getenv("VIZ_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}

	// Object storage config
	if endpoint := os.Getenv("VIZ_STORAGE_ENDPOINT"); endpoint != "" {
		config.Storage.Endpoint = endpoint
		config.Storage.Enabled = true
	}
	if accessKey := os.Getenv("VIZ_STORAGE_ACCESS_KEY"); accessKey != "" {
		config.Storage.AccessKey = accessKey
	}
	if secretKey := os.Getenv("VIZ_STORAGE_SECRET_KEY"); secretKey != "" {
		config.Storage.SecretKey = secretKey
	}
	if bucket := os.Getenv("VIZ_STORAGE_BUCKET"); bucket != "" {
		config.Storage.Bucket = bucket
	}
}

/*
Validate checks if the configuration is valid
*/
func (c *Config) Validate() error {
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("invalid batch size: %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.PageSize <= 0 {
		return fmt.Errorf("invalid page size: %d", c.Pipeline.PageSize)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("invalid worker count: %d", c.Pipeline.Workers)
	}
	if c.Pipeline.Dimensions != 2 && c.Pipeline.Dimensions != 3 {
		return fmt.Errorf("invalid dimensions: %d (must be 2 or 3)", c.Pipeline.Dimensions)
	}
	if _, err := ParseVectorPolicy(string(c.Pipeline.VectorPolicy)); err != nil {
		return err
	}
	if len(c.Output.Delimiter) != 1 {
		return fmt.Errorf("invalid delimiter: %q", c.Output.Delimiter)
	}
	if c.Storage.Enabled && (c.Storage.Endpoint == "" || c.Storage.Bucket == "") {
		return errors.New("storage upload needs an endpoint and a bucket")
	}
	return nil
}

/*
ValidateCredentials checks that the vector store can be reached without making any request.
*/
func (c *Config) ValidateCredentials() error {
	if c.Pinecone.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Pinecone.Index == "" && c.Pinecone.Host == "" {
		return ErrMissingIndex
	}
	return nil
}

/*
String returns the string representation of the distance type
*/
func (dt DistanceType) String() string {
	switch dt {
	case DistanceTypeEuclidean:
		return "euclidean"
	case DistanceTypeCosine:
		return "cosine"
	case DistanceTypeManhattan:
		return "manhattan"
	case DistanceTypeHamming:
		return "hamming"
	default:
		return "unknown"
	}
}

/*
ParseDistanceType converts a string to a DistanceType
*/
func ParseDistanceType(s string) DistanceType {
	switch s {
	case "euclidean":
		return DistanceTypeEuclidean
	case "cosine":
		return DistanceTypeCosine
	case "manhattan":
		return DistanceTypeManhattan
	case "hamming":
		return DistanceTypeHamming
	default:
		return DistanceTypeEuclidean
	}
}

/*
MarshalText writes the distance type by name
*/
func (dt DistanceType) MarshalText() ([]byte, error) {
	return []byte(dt.String()), nil
}

/*
UnmarshalText accepts a distance name such as "cosine" or its numeric value.

Unlike ParseDistanceType, unknown names are rejected instead of falling back to euclidean.
*/
func (dt *DistanceType) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	if n, err := strconv.Atoi(s); err == nil {
		s = DistanceType(n).String()
	}
	parsed := ParseDistanceType(s)
	if parsed.String() != s {
		return fmt.Errorf("invalid distance type: %q", string(text))
	}
	*dt = parsed
	return nil
}

// UnmarshalJSON takes both the quoted name and a bare number
func (dt *DistanceType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return dt.UnmarshalText([]byte(name))
	}
	return dt.UnmarshalText(data)
}

/*
ParseVectorPolicy converts a string to a VectorPolicy
*/
func ParseVectorPolicy(s string) (VectorPolicy, error) {
	switch VectorPolicy(s) {
	case VectorPolicyRequire, VectorPolicyAllowMissing:
		return VectorPolicy(s), nil
	case "":
		return VectorPolicyRequire, nil
	default:
		return "", fmt.Errorf("invalid vector policy: %q", s)
	}
}
