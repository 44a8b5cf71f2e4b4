package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is read from environment variables; in a cluster deployment the
// pod spec sets them, locally the defaults point at docker-compose services.
// TokenSigningSecret must never be logged or serialized anywhere.
type Config struct {
	DBHost                string  `mapstructure:"DB_HOST"`
	DBPort                string  `mapstructure:"DB_PORT"`
	DBUser                string  `mapstructure:"DB_USER"`
	DBPassword            string  `mapstructure:"DB_PASSWORD"`
	DBName                string  `mapstructure:"DB_NAME"`
	ServerPort            string  `mapstructure:"SERVER_PORT"`
	AWSRegion             string  `mapstructure:"AWS_REGION"`
	PayrollSQSQueueURL    string  `mapstructure:"PAYROLL_SQS_QUEUE_URL"`
	EmailSQSQueueURL      string  `mapstructure:"EMAIL_SQS_QUEUE_URL"`
	AWSEndpoint           string  `mapstructure:"AWS_ENDPOINT"`
	HRAPIURL              string  `mapstructure:"HR_API_URL"`
	TokenSigningSecret    string  `mapstructure:"TOKEN_SIGNING_SECRET"`
	QRRefreshIntervalMs   int     `mapstructure:"QR_REFRESH_INTERVAL_MS"`
	DefaultGeofenceRadius float64 `mapstructure:"DEFAULT_GEOFENCE_RADIUS_M"`
	EmailSender           string  `mapstructure:"EMAIL_SENDER"`
	EmployeeEmailDomain   string  `mapstructure:"EMPLOYEE_EMAIL_DOMAIN"`
	IsLocalDev            bool    `mapstructure:"IS_LOCAL_DEV"`
}

// QRRefreshInterval returns the refresh cadence as a duration.
func (c Config) QRRefreshInterval() time.Duration {
	return time.Duration(c.QRRefreshIntervalMs) * time.Millisecond
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("DB_HOST", "db")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "attendance_db")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AWS_REGION", "us-east-1") // Default region for AWS services
	viper.SetDefault("PAYROLL_SQS_QUEUE_URL", "http://localstack:4566/000000000000/payroll-queue")
	viper.SetDefault("EMAIL_SQS_QUEUE_URL", "http://localstack:4566/000000000000/email-queue")
	viper.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	viper.SetDefault("HR_API_URL", "http://localhost:8081/")
	viper.SetDefault("TOKEN_SIGNING_SECRET", "local-dev-secret-do-not-use")
	viper.SetDefault("QR_REFRESH_INTERVAL_MS", 30000)
	viper.SetDefault("DEFAULT_GEOFENCE_RADIUS_M", 75.0)
	viper.SetDefault("EMAIL_SENDER", "attendance@attendance-service.com")
	viper.SetDefault("EMPLOYEE_EMAIL_DOMAIN", "factory.com")
	viper.SetDefault("IS_LOCAL_DEV", false)

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}
