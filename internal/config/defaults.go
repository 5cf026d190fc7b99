package config

import "path/filepath"

func Defaults() *Config {
	base := DefaultConfigDir()
	return &Config{
		General: GeneralConfig{
			ScenariosDir: filepath.Join(base, "scenarios"),
			LogLevel:     "info",
		},
		Source: SourceConfig{
			SessionDir:        filepath.Join(base, "whatsapp-session"),
			Headless:          false, // WhatsApp Web login needs a visible QR at least once
			NavTimeoutSeconds: 30,
			LoginWaitSeconds:  120,
		},
		Classifier: ClassifierConfig{
			Backend:        "ollama",
			APIBase:        "http://localhost:11434",
			Model:          "gpt-oss:20b",
			TimeoutSeconds: 120,
			MaxRetries:     3,
		},
		Scan: ScanConfig{
			DefaultScrolls:  5,
			IntervalSeconds: 60,
		},
		Notify: NotifyConfig{
			Telegram: TelegramConfig{
				Enabled:       false,
				MinConfidence: "HIGH",
			},
		},
		Archive: ArchiveConfig{
			Enabled: false,
			DBPath:  filepath.Join(base, "insights.db"),
		},
	}
}
