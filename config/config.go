package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Users     []User          `yaml:"users"`
	Store     StoreConfig     `yaml:"store"`
	Unicourt  UnicourtConfig  `yaml:"unicourt"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Worker    WorkerConfig    `yaml:"worker"`
	Documents DocumentsConfig `yaml:"documents"`
	Facts     FactsConfig     `yaml:"facts"`
	Minio     MinioConfig     `yaml:"minio"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// UnicourtConfig points at the browser-automation agent that drives the
// Unicourt portal on our behalf.
type UnicourtConfig struct {
	AgentURL       string `yaml:"agent_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// How long an ordered document may take to appear in the
	// CrowdSourced section before the order is treated as failed.
	OrderAppearTimeoutSeconds int `yaml:"order_appear_timeout_seconds"`
}

type ExtractorConfig struct {
	APIURL         string `yaml:"api_url"`
	APIToken       string `yaml:"api_token"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type WorkerConfig struct {
	PoolSize            int `yaml:"pool_size"`
	PollIntervalMS      int `yaml:"poll_interval_ms"`
	SessionRetries      int `yaml:"session_retries"`
	GraceTimeoutSeconds int `yaml:"grace_timeout_seconds"`
}

type DocumentsConfig struct {
	OrderChunkSize        int      `yaml:"order_chunk_size"`
	DownloadDir           string   `yaml:"download_dir"`
	FinalJudgmentKeywords []string `yaml:"final_judgment_keywords"`
	ComplaintKeywords     []string `yaml:"complaint_keywords"`
}

type FactsConfig struct {
	ExtractPartyAddresses bool `yaml:"extract_party_addresses"`
}

type MinioConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "cases.db"
	}
	if cfg.Unicourt.TimeoutSeconds == 0 {
		cfg.Unicourt.TimeoutSeconds = 60
	}
	if cfg.Unicourt.OrderAppearTimeoutSeconds == 0 {
		cfg.Unicourt.OrderAppearTimeoutSeconds = 120
	}
	if cfg.Extractor.TimeoutSeconds == 0 {
		cfg.Extractor.TimeoutSeconds = 120
	}
	if cfg.Worker.PoolSize == 0 {
		cfg.Worker.PoolSize = 2
	}
	if cfg.Worker.PollIntervalMS == 0 {
		cfg.Worker.PollIntervalMS = 500
	}
	if cfg.Worker.SessionRetries == 0 {
		cfg.Worker.SessionRetries = 2
	}
	if cfg.Worker.GraceTimeoutSeconds == 0 {
		cfg.Worker.GraceTimeoutSeconds = 30
	}
	if cfg.Documents.OrderChunkSize == 0 {
		cfg.Documents.OrderChunkSize = 10
	}
	if cfg.Documents.DownloadDir == "" {
		cfg.Documents.DownloadDir = "downloads"
	}
	if len(cfg.Documents.FinalJudgmentKeywords) == 0 {
		cfg.Documents.FinalJudgmentKeywords = []string{"FINAL JUDGMENT", "DEFAULT JUDGMENT"}
	}
	if len(cfg.Documents.ComplaintKeywords) == 0 {
		cfg.Documents.ComplaintKeywords = []string{"COMPLAINT"}
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}

// WorkerPollInterval returns the queue poll interval as a duration.
func (c *Config) WorkerPollInterval() time.Duration {
	return time.Duration(c.Worker.PollIntervalMS) * time.Millisecond
}

// WorkerGraceTimeout returns the shutdown grace period as a duration.
func (c *Config) WorkerGraceTimeout() time.Duration {
	return time.Duration(c.Worker.GraceTimeoutSeconds) * time.Second
}
