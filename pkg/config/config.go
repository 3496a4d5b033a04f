package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 是所有環境變數的前綴，例如 SECRETSANTA_DB_HOST
const EnvPrefix = "SECRETSANTA"

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Auth   AuthConfig
	Draw   DrawConfig
	Log    LogConfig
}

type ServerConfig struct {
	Address   string
	Mode      string
	PublicURL string `mapstructure:"public_url"`
}

type DBConfig struct {
	Host            string
	User            string
	Password        string
	Name            string
	Port            int
	SSLMode         string        `mapstructure:"sslmode"`
	TimeZone        string        `mapstructure:"timezone"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN 回傳 gorm postgres driver 使用的 key=value 連線字串
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode, c.TimeZone)
}

// URL 回傳 golang-migrate 使用的 postgres:// 連線字串
func (c DBConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

type AuthConfig struct {
	// AdminSecret 是唯一可以進入管理介面的共用密碼，留空代表停用管理介面
	AdminSecret string        `mapstructure:"admin_secret"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

type DrawConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RevealDuration time.Duration `mapstructure:"reveal_duration"`
	RevealFrames   int           `mapstructure:"reveal_frames"`
}

type LogConfig struct {
	Verbose bool
	File    string
}

// New 建立一個已設定預設值與環境變數對應的 viper 實例
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.public_url", "")

	v.SetDefault("db.host", "")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "secret_santa")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("db.auto_migrate", true)

	v.SetDefault("auth.admin_secret", "")
	v.SetDefault("auth.token_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("draw.max_attempts", 3)
	v.SetDefault("draw.reveal_duration", 10*time.Second)
	v.SetDefault("draw.reveal_frames", 30)

	v.SetDefault("log.verbose", true)
	v.SetDefault("log.file", "")
}

// LoadDotEnv 如果 .env 存在就載入，已存在的環境變數不會被覆蓋
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// Load 讀取配置文件（可選）並解析成 Config
// configFile 為空時會在 ./pkg/config 與目前目錄尋找 config.yaml
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./pkg/config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.DB.Host == "" {
		return fmt.Errorf("db.host is required (env: %s_DB_HOST)", EnvPrefix)
	}
	if c.DB.Password == "" {
		return fmt.Errorf("db.password is required (env: %s_DB_PASSWORD)", EnvPrefix)
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		return fmt.Errorf("invalid db.port (must be between 1-65535 inclusive): %d", c.DB.Port)
	}
	// bcrypt 只接受 72 bytes 以內的密碼
	if len(c.Auth.AdminSecret) > 72 {
		return fmt.Errorf("auth.admin_secret must be at most 72 bytes, got %d", len(c.Auth.AdminSecret))
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("invalid server.mode %q (must be debug, release or test)", c.Server.Mode)
	}
	if c.Draw.MaxAttempts < 1 {
		return fmt.Errorf("draw.max_attempts must be at least 1, got %d", c.Draw.MaxAttempts)
	}
	if c.Draw.RevealFrames < 1 {
		return fmt.Errorf("draw.reveal_frames must be at least 1, got %d", c.Draw.RevealFrames)
	}
	if c.Draw.RevealDuration < 0 {
		return fmt.Errorf("draw.reveal_duration must not be negative, got %s", c.Draw.RevealDuration)
	}
	return nil
}
