package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Upload  UploadConfig  `yaml:"upload"`
	Media   MediaConfig   `yaml:"media"`
	Mail    MailConfig    `yaml:"mail"`
	Board   BoardConfig   `yaml:"board"`
	Submit  SubmitConfig  `yaml:"submit"`
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute per IP
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SessionConfig struct {
	Store       string        `yaml:"store"` // memory, redis
	RedisAddr   string        `yaml:"redis_addr"`
	TTL         time.Duration `yaml:"ttl"`
	MaxSessions int           `yaml:"max_sessions"`
	ResetDelay  time.Duration `yaml:"reset_delay"`
	Secret      string        `yaml:"secret"`
}

type UploadConfig struct {
	MaxBytes int64         `yaml:"max_bytes"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MediaConfig struct {
	Provider   string           `yaml:"provider"` // cloudinary, minio
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	Minio      MinioConfig      `yaml:"minio"`
}

type CloudinaryConfig struct {
	CloudName    string `yaml:"cloud_name"`
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	UploadPreset string `yaml:"upload_preset"`
	Folder       string `yaml:"folder"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
	PublicRead bool   `yaml:"public_read"` // bucket policy allows anonymous GET
}

type MailConfig struct {
	Provider     string     `yaml:"provider"` // resend, smtp
	From         string     `yaml:"from"`
	To           string     `yaml:"to"`
	ResendAPIKey string     `yaml:"resend_api_key"`
	SMTP         SMTPConfig `yaml:"smtp"`
}

type SMTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// BoardConfig configures the optional monday.com item creation.
// Columns maps submission field names to board column ids.
type BoardConfig struct {
	Enabled  bool              `yaml:"enabled"`
	APIURL   string            `yaml:"api_url"`
	APIToken string            `yaml:"api_token"`
	BoardID  string            `yaml:"board_id"`
	GroupID  string            `yaml:"group_id"`
	Columns  map[string]string `yaml:"columns"`
}

type SubmitConfig struct {
	// Endpoint receives the assembled payload. Empty dispatches in-process.
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// .env is optional; values already in the environment win
	_ = godotenv.Load()
	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Mail.ResendAPIKey, "RESEND_API_KEY")
	override(&c.Mail.SMTP.Pass, "SMTP_PASS")
	override(&c.Media.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	override(&c.Media.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")
	override(&c.Media.Minio.AccessKey, "MINIO_ACCESS_KEY")
	override(&c.Media.Minio.SecretKey, "MINIO_SECRET_KEY")
	override(&c.Board.APIToken, "MONDAY_API_TOKEN")
	override(&c.Session.Secret, "SESSION_SECRET")
	override(&c.Session.RedisAddr, "REDIS_ADDR")
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./web"
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 2 * time.Hour
	}
	if c.Session.MaxSessions == 0 {
		c.Session.MaxSessions = 1000
	}
	if c.Session.ResetDelay == 0 {
		c.Session.ResetDelay = 3 * time.Second
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = 8 << 20
	}
	if c.Upload.Timeout == 0 {
		c.Upload.Timeout = 2 * time.Minute
	}
	if c.Media.Provider == "" {
		c.Media.Provider = "cloudinary"
	}
	if c.Media.Minio.ExpireDays == 0 {
		c.Media.Minio.ExpireDays = 7
	}
	if c.Mail.Provider == "" {
		c.Mail.Provider = "resend"
	}
	if c.Mail.SMTP.Port == 0 {
		c.Mail.SMTP.Port = 587
	}
	if c.Board.APIURL == "" {
		c.Board.APIURL = "https://api.monday.com/v2"
	}
	if c.Submit.Timeout == 0 {
		c.Submit.Timeout = 60 * time.Second
	}
}

// Configured reports whether the selected mail provider has credentials.
func (c *MailConfig) Configured() bool {
	switch c.Provider {
	case "smtp":
		return c.SMTP.Host != "" && c.SMTP.Pass != ""
	case "resend", "":
		return c.ResendAPIKey != ""
	default:
		return false
	}
}
