package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
	CORSOrigins     []string // 前端来源白名单
}
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

type Log struct {
	Level string
	JSON  bool
	// 文件切割（可选）
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret             string
	Issuer             string
	AccessTokenTTLMin  int
	RefreshTokenTTLHrs int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// 角色能力缓存 TTL
	TaxonomyTTLSec int `mapstructure:"taxonomyttlsec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Org 组织邮箱域名闸门
type Org struct {
	AllowedDomain string
}

// OAuth Google 登录
type OAuth struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Issuer       string
	JWKSURL      string
	TimeoutSec   int
}

// Content 内容接口的读权限开关
type Content struct {
	PublicProjects bool
	PublicEvents   bool
}

type Config struct {
	App     App
	Log     Log
	JWT     JWT
	DB      DB
	Redis   Redis `mapstructure:"redis"`
	Org     Org
	OAuth   OAuth
	Content Content
}

func Load(path string) *Config {
	c, err := LoadE(path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	return c
}

func LoadE(path string) (*Config, error) {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "csesa-backend")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.issuer", "csesa")
	v.SetDefault("jwt.accesstokenttlmin", 60)
	v.SetDefault("jwt.refreshtokenttlhrs", 24*7)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:csesa.db")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 5)
	v.SetDefault("db.automigrate", true)
	v.SetDefault("redis.taxonomyttlsec", 300)
	v.SetDefault("oauth.issuer", "https://accounts.google.com")
	v.SetDefault("oauth.jwksurl", "https://www.googleapis.com/oauth2/v3/certs")
	v.SetDefault("oauth.timeoutsec", 10)
	v.SetDefault("content.publicprojects", false)
	v.SetDefault("content.publicevents", false)
}

// Validate 启动期必须项
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Org.AllowedDomain) == "" {
		return fmt.Errorf("config: org.allowedDomain is required")
	}
	if len(c.JWT.Secret) < 16 {
		return fmt.Errorf("config: jwt.secret must be at least 16 bytes")
	}
	return nil
}
