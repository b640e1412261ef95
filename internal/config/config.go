package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort         string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL      string `env:"DATABASE_URL,required"`
	LLMAPIKey        string `env:"LLM_API_KEY,required"`
	LLMBaseURL       string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel         string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	JWTSecret        string `env:"JWT_SECRET,required"`
	FreeMessageLimit int    `env:"FREE_MESSAGE_LIMIT" envDefault:"1"`
	StreamIdleSecs   int    `env:"STREAM_IDLE_TIMEOUT_SECONDS" envDefault:"60"`
	RedisAddr        string `env:"REDIS_ADDR"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	RedisDB          int    `env:"REDIS_DB" envDefault:"0"`
	RateLimitPerMin  int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
