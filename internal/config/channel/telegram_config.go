package channel

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chatId"`
	// APIEndpoint is a Bot API URL template with two %s verbs (token, method).
	APIEndpoint string `yaml:"apiEndpoint,omitempty"`
}

func DefaultTelegramConfig() TelegramConfig {
	return TelegramConfig{APIEndpoint: "https://api.telegram.org/bot%s/%s"}
}
