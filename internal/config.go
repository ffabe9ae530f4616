package internal

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	AppEnv   string         `mapstructure:"app_env" validate:"required,oneof=development production test"`
	Server   ServerConfig   `mapstructure:"http_server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Mail     MailConfig     `mapstructure:"mail"`
	Media    MediaConfig    `mapstructure:"media"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize     int64         `mapstructure:"max_upload_size" validate:"min=1024"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" validate:"required"`
}

type SecurityConfig struct {
	SecretKey                string        `mapstructure:"secret_key" validate:"required,min=16"`
	Algorithm                string        `mapstructure:"algorithm" validate:"required,oneof=HS256 HS384 HS512"`
	AccessTokenExpireMinutes int           `mapstructure:"access_token_expire_minutes" validate:"min=0"`
	SecurityPasswordSalt     string        `mapstructure:"security_password_salt" validate:"required"`
	ConfirmationMaxAge       time.Duration `mapstructure:"confirmation_max_age" validate:"required,min=1m"`
	BCryptCost               int           `mapstructure:"bcrypt_cost" validate:"required,min=4,max=31"`
}

// AccessTokenTTL falls back to 15 minutes when no expiry is configured.
func (c SecurityConfig) AccessTokenTTL() time.Duration {
	if c.AccessTokenExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// MailConfig holds the SMTP account mails are sent from and the links
// rendered into them. URL templates receive {{.ConfirmationToken}}.
type MailConfig struct {
	Host             string `mapstructure:"host" validate:"required"`
	Port             int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	Email            string `mapstructure:"email" validate:"required,email"`
	ConfirmationURL  string `mapstructure:"confirmation_url" validate:"required"`
	PasswordResetURL string `mapstructure:"password_reset_url" validate:"required"`
}

type MediaConfig struct {
	Driver              string            `mapstructure:"driver" validate:"required,oneof=local s3"`
	Folder              string            `mapstructure:"folder" validate:"required_if=Driver local"`
	BaseURL             string            `mapstructure:"base_url" validate:"required"`
	AvailableImageSizes []string          `mapstructure:"available_image_sizes" validate:"required,min=1,dive,required"`
	ImageSizes          map[string]string `mapstructure:"image_sizes" validate:"required"`
	S3                  S3Config          `mapstructure:"s3"`
}

type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

type QueueConfig struct {
	Driver  string      `mapstructure:"driver" validate:"required,oneof=redis memory"`
	Key     string      `mapstructure:"key" validate:"required"`
	Workers int         `mapstructure:"workers" validate:"min=0"`
	Buffer  int         `mapstructure:"buffer" validate:"min=0"`
	Redis   RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ----------------- VALIDATION -----------------

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s: failed on %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Mail.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("mail config: %v", err))
	}

	if err := c.Media.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("media config: %v", err))
	}

	if err := c.Queue.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("queue config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

const tokenMarker = "__leaf_confirmation_token__"

func (c *MailConfig) Validate() error {
	if _, err := RenderTokenURL(c.ConfirmationURL, tokenMarker); err != nil {
		return fmt.Errorf("confirmation_url: %w", err)
	}
	if _, err := RenderTokenURL(c.PasswordResetURL, tokenMarker); err != nil {
		return fmt.Errorf("password_reset_url: %w", err)
	}
	return nil
}

// RenderTokenURL executes a link template and checks the token ended up in it.
func RenderTokenURL(tmpl, token string) (string, error) {
	t, err := template.New("url").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, struct{ ConfirmationToken string }{token}); err != nil {
		return "", err
	}
	out := buf.String()
	if !strings.Contains(out, token) {
		return "", errors.New("template does not use {{.ConfirmationToken}}")
	}
	return out, nil
}

func (c *MediaConfig) Validate() error {
	for _, name := range c.AvailableImageSizes {
		if _, ok := c.ImageSizes[name]; !ok {
			return fmt.Errorf("image size %q has no dimensions in image_sizes", name)
		}
	}
	if c.Driver == "s3" && c.S3.Bucket == "" {
		return errors.New("s3 driver requires s3.bucket")
	}
	return nil
}

func (c *QueueConfig) Validate() error {
	if c.Driver == "redis" && c.Redis.Addr == "" {
		return errors.New("redis driver requires redis.addr")
	}
	return nil
}
