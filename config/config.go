package config

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILSYNC_POSTGRES_HOST,required"`
	Port            string `env:"MAILSYNC_POSTGRES_PORT,required"`
	User            string `env:"MAILSYNC_POSTGRES_USER,required"`
	DBName          string `env:"MAILSYNC_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILSYNC_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILSYNC_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILSYNC_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILSYNC_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILSYNC_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILSYNC_POSTGRES_SSL_MODE" envDefault:"require"`
}

type InferenceConfig struct {
	Url            string `env:"INFERENCE_URL" envDefault:"http://localhost:8085" validate:"required"`
	ApiKey         string `env:"INFERENCE_API_KEY"`
	TimeoutSeconds int    `env:"INFERENCE_TIMEOUT_SECONDS" envDefault:"30"`
	// SnippetMaxChars bounds the prompt context sent per message.
	SnippetMaxChars int `env:"INFERENCE_SNIPPET_MAX_CHARS" envDefault:"800"`
}

type PushRelayConfig struct {
	Url            string `env:"PUSH_RELAY_URL" validate:"required"`
	ApiKey         string `env:"PUSH_RELAY_API_KEY"`
	TimeoutSeconds int    `env:"PUSH_RELAY_TIMEOUT_SECONDS" envDefault:"10"`
	// MaxPerCycle caps notifications per sync cycle so a large backfill
	// never turns into a notification storm.
	MaxPerCycle  int    `env:"PUSH_MAX_PER_CYCLE" envDefault:"5"`
	DeepLinkBase string `env:"PUSH_DEEP_LINK_BASE" envDefault:"https://app.customeros.ai/inbox"`
}

type GoogleOAuthConfig struct {
	ClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET"`
}
