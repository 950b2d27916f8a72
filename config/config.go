package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort int    `mapstructure:"SERVER_PORT"`
	ServerHost string `mapstructure:"SERVER_HOST"`

	DatabaseDbPath string `mapstructure:"DB_PATH"`

	ValkeyAddress      string `mapstructure:"VALKEY_ADDRESS"`
	ValkeyDistanceDB   int    `mapstructure:"VALKEY_DISTANCE_DB"`
	ValkeyAccountDB    int    `mapstructure:"VALKEY_ACCOUNT_DB"`
	ValkeySubmissionDB int    `mapstructure:"VALKEY_SUBMISSION_DB"`

	PSABaseURL            string `mapstructure:"PSA_BASE_URL"`
	PSAUsername           string `mapstructure:"PSA_USERNAME"`
	PSASecret             string `mapstructure:"PSA_SECRET"`
	PSATrackingIdentifier string `mapstructure:"PSA_TRACKING_IDENTIFIER"`

	MapsAPIKey string `mapstructure:"MAPS_API_KEY"`
	MapsUnits  string `mapstructure:"MAPS_UNITS"`

	DollarsPerMile    float64 `mapstructure:"DOLLARS_PER_MILE"`
	ExpenseTitle      string  `mapstructure:"EXPENSE_TITLE"`
	TravelDescription string  `mapstructure:"TRAVEL_DESCRIPTION"`

	LogFirstTravelEntryOfDay bool `mapstructure:"LOG_FIRST_TRAVEL_ENTRY_OF_DAY"`
	LogLastTravelEntryOfDay  bool `mapstructure:"LOG_LAST_TRAVEL_ENTRY_OF_DAY"`
}

func InitConfig() (Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8288)
	viper.SetDefault("SERVER_HOST", "localhost")
	viper.SetDefault("DB_PATH", "data/relay.db")
	viper.SetDefault("VALKEY_ADDRESS", "localhost:6379")
	viper.SetDefault("VALKEY_DISTANCE_DB", 1)
	viper.SetDefault("VALKEY_ACCOUNT_DB", 2)
	viper.SetDefault("VALKEY_SUBMISSION_DB", 3)
	viper.SetDefault("MAPS_UNITS", "imperial")
	viper.SetDefault("DOLLARS_PER_MILE", 0.58)
	viper.SetDefault("EXPENSE_TITLE", "Gas Expenses")
	viper.SetDefault("TRAVEL_DESCRIPTION", "Travel from")
	viper.SetDefault("LOG_FIRST_TRAVEL_ENTRY_OF_DAY", true)
	viper.SetDefault("LOG_LAST_TRAVEL_ENTRY_OF_DAY", true)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.PSABaseURL == "" {
		return Config{}, fmt.Errorf("PSA_BASE_URL is required")
	}

	return config, nil
}
