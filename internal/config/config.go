package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Cron   CronConfig   `mapstructure:"cron"`

	Game        GameConfig        `mapstructure:"game"`
	PriceOracle PriceOracleConfig `mapstructure:"price_oracle"`
	Captcha     CaptchaConfig     `mapstructure:"captcha"`
	Notify      NotifyConfig      `mapstructure:"notify"`
	Auth        AuthConfig        `mapstructure:"auth"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CronConfig struct {
	SettlementTickSeconds int    `mapstructure:"settlement_tick_seconds"`
	SeedSpec              string `mapstructure:"seed_spec"`
}

// GameConfig carries the tunable game rules. The defaults reproduce the
// launch rules: a $5.00 pool split among players within $500 of the
// official price, target instant inside the 03:00-20:59 UTC window.
type GameConfig struct {
	WinThresholdUSD int64         `mapstructure:"win_threshold_usd"`
	PrizePoolUSD    string        `mapstructure:"prize_pool_usd"`
	TargetHourMin   int           `mapstructure:"target_hour_min"`
	TargetHourSpan  int           `mapstructure:"target_hour_span"`
	MaxPriceUSD     int64         `mapstructure:"max_price_usd"`
	AnonGuessTTL    time.Duration `mapstructure:"anon_guess_ttl"`
}

type PriceOracleConfig struct {
	Sources []string      `mapstructure:"sources"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CaptchaConfig struct {
	VerifyURL string        `mapstructure:"verify_url"`
	Secret    string        `mapstructure:"secret"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type NotifyConfig struct {
	OperatorEmail string        `mapstructure:"operator_email"`
	FromEmail     string        `mapstructure:"from_email"`
	ResendAPIKey  string        `mapstructure:"resend_api_key"`
	ResendBaseURL string        `mapstructure:"resend_base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	LoginTokenTTL time.Duration `mapstructure:"login_token_ttl"`
}

type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	PerMinute     int  `mapstructure:"per_minute"`
	AuthPerMinute int  `mapstructure:"auth_per_minute"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cron.settlement_tick_seconds", 60)
	// 00:01 UTC daily; first field is seconds.
	v.SetDefault("cron.seed_spec", "0 1 0 * * *")

	v.SetDefault("game.win_threshold_usd", 500)
	v.SetDefault("game.prize_pool_usd", "5.00")
	v.SetDefault("game.target_hour_min", 3)
	v.SetDefault("game.target_hour_span", 18)
	v.SetDefault("game.max_price_usd", 999999999)
	v.SetDefault("game.anon_guess_ttl", "48h")

	v.SetDefault("price_oracle.sources", []string{"coinbase", "coingecko", "binance"})
	v.SetDefault("price_oracle.timeout", "5s")

	v.SetDefault("captcha.verify_url", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("captcha.timeout", "5s")

	v.SetDefault("notify.operator_email", "")
	v.SetDefault("notify.from_email", "Satoshi Daily <noreply@satoshidaily.app>")
	v.SetDefault("notify.resend_base_url", "https://api.resend.com")
	v.SetDefault("notify.timeout", "10s")

	v.SetDefault("auth.session_ttl", "720h")
	v.SetDefault("auth.login_token_ttl", "15m")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_minute", 30)
	v.SetDefault("rate_limit.auth_per_minute", 10)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
