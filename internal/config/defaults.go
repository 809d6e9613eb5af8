package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:      "info",
			LogFormat:     "text",
			LogMaxSizeMB:  50,
			LogMaxBackups: 3,
		},
		Telegram: TelegramConfig{
			PollTimeout: 30,
		},
		Relay: RelayConfig{
			ChannelsFile:    "channel_config.json",
			BlockedMentions: []string{"@WatcherGuru"},
			BusSize:         100,
			RecentWindow:    0,
		},
		Delivery: DeliveryConfig{
			TimeoutSeconds: 15,
			UserAgent:      "chanrelay",
		},
		State: StateConfig{
			RetentionDays: 30,
			PruneSchedule: "@daily",
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Listen:   "127.0.0.1:9464",
			Endpoint: "/metrics",
		},
	}
}
