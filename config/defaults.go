// Reasonable defaults for every config section.
package config

import "time"

// DefaultConfig returns the default top-level config.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Agent:     DefaultAgentConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Qdrant:    DefaultQdrantConfig(),
		Weaviate:  DefaultWeaviateConfig(),
		Milvus:    DefaultMilvusConfig(),
		LLM:       DefaultLLMConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default HTTP/gRPC/metrics server config.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		GRPCPort:        9090,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultAgentConfig returns the default single-agent config (unused by
// the core pipelines; kept for callers that embed an agent runtime).
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Name:          "default-agent",
		Description:   "Default agent",
		Model:         "gpt-4",
		SystemPrompt:  "You are a helpful AI assistant.",
		MaxIterations: 10,
		Temperature:   0.7,
		MaxTokens:     4096,
		Timeout:       5 * time.Minute,
		StreamEnabled: true,
		Memory: MemoryConfig{
			Enabled:     true,
			Type:        "buffer",
			MaxMessages: 100,
			TokenLimit:  8000,
		},
	}
}

// DefaultRedisConfig returns the default Redis connection config.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig returns the default database connection config.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "greenleaf",
		Password:        "",
		Name:            "greenleaf",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultQdrantConfig returns the default Qdrant config (unused by the
// core pipelines, which store semantic memories via repository.Memories
// rather than a standalone vector database; kept for callers that wire
// one in).
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:       "localhost",
		Port:       6334,
		APIKey:     "",
		Collection: "greenleaf_vectors",
	}
}

// DefaultWeaviateConfig returns the default Weaviate config (unused by
// the core pipelines; see DefaultQdrantConfig).
func DefaultWeaviateConfig() WeaviateConfig {
	return WeaviateConfig{
		Host:             "localhost",
		Port:             8080,
		Scheme:           "http",
		APIKey:           "",
		ClassName:        "GreenleafDocuments",
		AutoCreateSchema: true,
		Distance:         "cosine",
		HybridAlpha:      0.5,
		Timeout:          30 * time.Second,
	}
}

// DefaultMilvusConfig returns the default Milvus config (unused by the
// core pipelines; see DefaultQdrantConfig).
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Host:                 "localhost",
		Port:                 19530,
		Username:             "",
		Password:             "",
		Token:                "",
		Database:             "default",
		Collection:           "greenleaf_vectors",
		VectorDimension:      1536, // OpenAI embedding dimension
		IndexType:            "IVF_FLAT",
		MetricType:           "COSINE",
		AutoCreateCollection: true,
		Timeout:              30 * time.Second,
		BatchSize:            1000,
		ConsistencyLevel:     "Strong",
	}
}

// DefaultLLMConfig returns the default LLM provider config.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider: "openai",
		APIKey:          "",
		BaseURL:         "",
		Timeout:         2 * time.Minute,
		MaxRetries:      3,
	}
}

// DefaultLogConfig returns the default zap logging config.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default OpenTelemetry config.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "greenleaf-core",
		SampleRate:   0.1,
	}
}
