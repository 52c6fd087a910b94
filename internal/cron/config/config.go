package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// Mailbox sync cycle for all accounts, every 5 minutes
	CronScheduleSync string `env:"CRON_SCHEDULE_SYNC" envDefault:"0 */5 * * * *"`
}
