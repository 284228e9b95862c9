// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 25, cfg.Engine.MaxSteps)
	assert.Equal(t, "memory", cfg.Checkpoint.Type)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_steps: 40
  reflect_rounds: 5
  bound_mode: messages
tools:
  max_concurrency: 2
  default_timeout: 5s
retry:
  max_retries: 1
  jitter: false
checkpoint:
  type: redis
  redis:
    addr: "redis.example.com:6379"
    password: "secret"
    db: 1
log:
  level: debug
  format: json
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.Engine.MaxSteps)
	assert.Equal(t, 5, cfg.Engine.ReflectRounds)
	assert.Equal(t, "messages", cfg.Engine.BoundMode)
	// 未出现在文件中的字段保留默认值
	assert.Equal(t, 3, cfg.Engine.RoundSize)

	assert.Equal(t, 2, cfg.Tools.MaxConcurrency)
	assert.Equal(t, 5*time.Second, cfg.Tools.DefaultTimeout)

	assert.Equal(t, 1, cfg.Retry.MaxRetries)
	assert.False(t, cfg.Retry.Jitter)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)

	assert.Equal(t, "redis", cfg.Checkpoint.Type)
	assert.Equal(t, "redis.example.com:6379", cfg.Checkpoint.Redis.Addr)
	assert.Equal(t, "secret", cfg.Checkpoint.Redis.Password)
	assert.Equal(t, 1, cfg.Checkpoint.Redis.DB)
	assert.Equal(t, "agentgraph:", cfg.Checkpoint.Redis.KeyPrefix)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("AGENTGRAPH_ENGINE_MAX_STEPS", "12")
	t.Setenv("AGENTGRAPH_TOOLS_DEFAULT_TIMEOUT", "750ms")
	t.Setenv("AGENTGRAPH_MODEL_TEMPERATURE", "0.2")
	t.Setenv("AGENTGRAPH_RETRY_JITTER", "false")
	t.Setenv("AGENTGRAPH_CHECKPOINT_DATABASE_DRIVER", "postgres")
	t.Setenv("AGENTGRAPH_LOG_OUTPUT_PATHS", "stdout, /tmp/agentgraph.log")
	t.Setenv("AGENTGRAPH_METRICS_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Engine.MaxSteps)
	assert.Equal(t, 750*time.Millisecond, cfg.Tools.DefaultTimeout)
	assert.InDelta(t, 0.2, cfg.Model.Temperature, 0.0001)
	assert.False(t, cfg.Retry.Jitter)
	assert.Equal(t, "postgres", cfg.Checkpoint.Database.Driver)
	assert.Equal(t, []string{"stdout", "/tmp/agentgraph.log"}, cfg.Log.OutputPaths)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_steps: 40
  reflect_rounds: 5
`)
	t.Setenv("AGENTGRAPH_ENGINE_MAX_STEPS", "99")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 99, cfg.Engine.MaxSteps)
	assert.Equal(t, 5, cfg.Engine.ReflectRounds)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_ENGINE_MAX_STEPS", "7")
	t.Setenv("AGENTGRAPH_ENGINE_MAX_STEPS", "99")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Engine.MaxSteps)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("AGENTGRAPH_TOOLS_DEFAULT_TIMEOUT", "soon")

	_, err := NewLoader().Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGENTGRAPH_TOOLS_DEFAULT_TIMEOUT")
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("AGENTGRAPH_CHECKPOINT_TYPE", "etcd")

	_, err := NewLoader().WithValidator((*Config).Validate).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `checkpoint.type "etcd" is not supported`)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/non/existent/agentgraph.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_steps: [invalid
  this is not valid yaml
`)

	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{
			name:    "negative max steps",
			modify:  func(c *Config) { c.Engine.MaxSteps = -1 },
			wantErr: "engine.max_steps",
		},
		{
			name:    "unknown bound mode",
			modify:  func(c *Config) { c.Engine.BoundMode = "tokens" },
			wantErr: "engine.bound_mode",
		},
		{
			name:    "negative concurrency",
			modify:  func(c *Config) { c.Tools.MaxConcurrency = -2 },
			wantErr: "tools.max_concurrency",
		},
		{
			name:    "temperature too high",
			modify:  func(c *Config) { c.Model.Temperature = 3 },
			wantErr: "model.temperature",
		},
		{
			name:    "shrinking retry multiplier",
			modify:  func(c *Config) { c.Retry.Multiplier = 0.5 },
			wantErr: "retry.multiplier",
		},
		{
			name:   "multiplier ignored without retries",
			modify: func(c *Config) { c.Retry.MaxRetries = 0; c.Retry.Multiplier = 0 },
		},
		{
			name:    "file store without base dir",
			modify:  func(c *Config) { c.Checkpoint.Type = "file"; c.Checkpoint.BaseDir = "" },
			wantErr: "checkpoint.base_dir",
		},
		{
			name:    "redis store without addr",
			modify:  func(c *Config) { c.Checkpoint.Type = "redis"; c.Checkpoint.Redis.Addr = "" },
			wantErr: "checkpoint.redis.addr",
		},
		{
			name:    "database store with unknown driver",
			modify:  func(c *Config) { c.Checkpoint.Type = "database"; c.Checkpoint.Database.Driver = "oracle" },
			wantErr: `checkpoint.database.driver "oracle"`,
		},
		{
			name:    "sample rate out of range",
			modify:  func(c *Config) { c.Telemetry.SampleRate = 1.5 },
			wantErr: "telemetry.sample_rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.MaxSteps = -1
	cfg.Tools.MaxConcurrency = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.max_steps")
	assert.Contains(t, err.Error(), "tools.max_concurrency")
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/db.sqlite"},
			expected: "/path/to/db.sqlite",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

func TestMustLoad(t *testing.T) {
	path := writeConfig(t, "engine:\n  max_steps: 10\n")
	assert.NotPanics(t, func() {
		cfg := MustLoad(path)
		assert.Equal(t, 10, cfg.Engine.MaxSteps)
	})

	bad := writeConfig(t, "engine:\n  bound_mode: sideways\n")
	assert.Panics(t, func() { MustLoad(bad) })
}
