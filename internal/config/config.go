package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the API process and the ops CLI need. Values come
// from the environment only; nothing else should read raw env vars.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Twilio TwilioConfig
	Speech SpeechConfig
	LLM    LLMConfig
	Events EventsConfig
	Calls  CallsConfig
}

type AppConfig struct {
	Env           string
	Port          int
	PublicBaseURL string
	Company       string
	AssistantName string
	DefaultAgent  string
	// ScriptsFile optionally overlays persona scripts from YAML.
	ScriptsFile string
}

// DBConfig is optional. With no URL and no host the service keeps sessions,
// candidates and activity in memory.
type DBConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. When set, sessions are shared between replicas.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	Prefix   string
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	PhoneNumber       string
	FallbackVoice     string
	ValidateSignature bool
	OperatorNumber    string
}

type SpeechConfig struct {
	ElevenLabsKey  string
	VoiceID        string
	CacheDir       string
	CacheMaxFiles  int
	CacheMaxAge    time.Duration
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

type LLMConfig struct {
	GeminiKey string
	Model     string
	// ReplyMode is scripted, ai or auto.
	ReplyMode string
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

type CallsConfig struct {
	StaleTTL        time.Duration
	ExternalTimeout time.Duration
	CallbackWindow  time.Duration
	MaxConcurrent   int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error
	num := func(key string, def int) int {
		n, err := optionalInt(key, def)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return n
	}
	dur := func(key string) time.Duration {
		d, err := optionalDuration(key)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		return d
	}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port = num("APP_PORT", 8080)
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")
	c.App.Company = strings.TrimSpace(os.Getenv("COMPANY_NAME"))
	c.App.AssistantName = strings.TrimSpace(os.Getenv("ASSISTANT_NAME"))
	c.App.DefaultAgent = strings.ToLower(strings.TrimSpace(os.Getenv("DEFAULT_AGENT_PROFILE")))
	c.App.ScriptsFile = strings.TrimSpace(os.Getenv("CALL_SCRIPTS_FILE"))

	c.DB.URL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = num("DB_PORT", 5432)
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = num("REDIS_PORT", 6379)
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.Prefix = strings.TrimSpace(os.Getenv("REDIS_PREFIX"))

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = dur("JWT_ACCESS_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.PhoneNumber = strings.TrimSpace(os.Getenv("TWILIO_PHONE_NUMBER"))
	c.Twilio.FallbackVoice = strings.TrimSpace(os.Getenv("TWILIO_FALLBACK_VOICE"))
	c.Twilio.ValidateSignature = boolEnv("VALIDATE_TWILIO_SIGNATURE")
	c.Twilio.OperatorNumber = strings.TrimSpace(os.Getenv("OPERATOR_PHONE_NUMBER"))

	c.Speech.ElevenLabsKey = strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	c.Speech.VoiceID = strings.TrimSpace(os.Getenv("ELEVENLABS_VOICE_ID"))
	c.Speech.CacheDir = strings.TrimSpace(os.Getenv("TTS_CACHE_DIR"))
	c.Speech.CacheMaxFiles = num("TTS_CACHE_MAX_FILES", 500)
	c.Speech.CacheMaxAge = time.Duration(num("TTS_CACHE_MAX_DAYS", 30)) * 24 * time.Hour
	c.Speech.MinIOEndpoint = strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	c.Speech.MinIOAccessKey = strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	c.Speech.MinIOSecretKey = os.Getenv("MINIO_SECRET_KEY")
	c.Speech.MinIOBucket = strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	c.Speech.MinIOUseSSL = boolEnv("MINIO_USE_SSL")

	c.LLM.GeminiKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	c.LLM.Model = strings.TrimSpace(os.Getenv("GEMINI_MODEL"))
	c.LLM.ReplyMode = strings.ToLower(strings.TrimSpace(os.Getenv("REPLY_PROVIDER_MODE")))

	c.Events.AMQPURL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	c.Events.Exchange = strings.TrimSpace(os.Getenv("AMQP_EXCHANGE"))

	c.Calls.StaleTTL = dur("STALE_CALL_TTL")
	c.Calls.ExternalTimeout = dur("EXTERNAL_TIMEOUT")
	c.Calls.CallbackWindow = dur("CALLBACK_WINDOW")
	c.Calls.MaxConcurrent = num("MAX_CONCURRENT_CALLS", 0)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every problem at once and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.PublicBaseURL == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("PUBLIC_BASE_URL is required in production"))
		} else {
			c.App.PublicBaseURL = fmt.Sprintf("http://localhost:%d", c.App.Port)
		}
	} else if !strings.HasPrefix(c.App.PublicBaseURL, "http://") && !strings.HasPrefix(c.App.PublicBaseURL, "https://") {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an http(s) URL, got %q", c.App.PublicBaseURL))
	}
	if c.App.Company == "" {
		c.App.Company = "Joblynk"
	}
	if c.App.AssistantName == "" {
		c.App.AssistantName = "Sara"
	}
	if c.App.DefaultAgent == "" {
		c.App.DefaultAgent = "sara"
	}

	if c.DBEnabled() && c.DB.URL == "" {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "screening"
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 12 * time.Hour
	}

	if c.Twilio.FallbackVoice == "" {
		c.Twilio.FallbackVoice = "Polly.Matthew"
	}

	if c.Speech.CacheDir == "" {
		c.Speech.CacheDir = "tts_cache"
	}
	if c.Speech.CacheMaxFiles < 0 {
		errs = append(errs, fmt.Errorf("TTS_CACHE_MAX_FILES must not be negative, got %d", c.Speech.CacheMaxFiles))
	}
	if c.Speech.MinIOEndpoint != "" && (c.Speech.MinIOAccessKey == "" || c.Speech.MinIOSecretKey == "") {
		errs = append(errs, errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when MINIO_ENDPOINT is set"))
	}
	if c.Speech.MinIOBucket == "" {
		c.Speech.MinIOBucket = "screening-tts"
	}

	switch c.LLM.ReplyMode {
	case "":
		c.LLM.ReplyMode = "auto"
	case "scripted", "ai", "auto":
	default:
		errs = append(errs, fmt.Errorf("REPLY_PROVIDER_MODE must be one of scripted, ai, auto, got %q", c.LLM.ReplyMode))
	}

	if c.Events.Exchange == "" {
		c.Events.Exchange = "screening"
	}

	if c.Calls.StaleTTL <= 0 {
		c.Calls.StaleTTL = 120 * time.Second
	}
	if c.Calls.ExternalTimeout <= 0 {
		c.Calls.ExternalTimeout = 8 * time.Second
	}
	if c.Calls.CallbackWindow <= 0 {
		c.Calls.CallbackWindow = 72 * time.Hour
	}
	if c.Calls.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_CALLS must not be negative, got %d", c.Calls.MaxConcurrent))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) DBEnabled() bool {
	return c.DB.URL != "" || c.DB.Host != ""
}

func (c Config) PostgresDSN() string {
	// Never log this; it carries the password.
	if c.DB.URL != "" {
		return c.DB.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisEnabled() bool { return c.Redis.Host != "" }

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// TelephonyMissing lists the telephony settings call placement needs but
// does not have. An empty result means calls can be placed.
func (c Config) TelephonyMissing() []string {
	var out []string
	if c.Twilio.AccountSID == "" {
		out = append(out, "TWILIO_ACCOUNT_SID")
	}
	if c.Twilio.AuthToken == "" {
		out = append(out, "TWILIO_AUTH_TOKEN")
	}
	if c.Twilio.PhoneNumber == "" {
		out = append(out, "TWILIO_PHONE_NUMBER")
	}
	return out
}

func optionalInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalDuration(key string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, v)
	}
	return d, nil
}

func boolEnv(key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return b
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
