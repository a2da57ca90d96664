package config

import (
	"github.com/shopspring/decimal"
)

type Config struct {
	Bookkeeping BookkeepingConfig
	Members     MembersConfig
	Metrics     MetricsConfig

	// Cron schedule shared by the recurring jobs when running in cron mode
	UpdateFrequency string
}

type Secrets struct {
	Influx InfluxSecrets
	SQL    SqlSecrets

	// Alternative to the SQL struct, designed to be used with a heroku style
	// DATABASE_URL env variable
	DatabaseURL string `env:"DATABASE_URL"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Bookkeeping
///////////////////////////////////////////////////////////////////////////////////////

type BookkeepingConfig struct {
	SQL struct {
		Database string
	}

	// Transactions with 0 <= amount <= DonationThreshold that no rule matched
	// are filed under the donation category
	DonationThreshold     decimal.Decimal `json:"donationThreshold"`
	UncategorizedCategory string          `json:"uncategorizedCategory"`
	DonationCategory      string          `json:"donationCategory"`
	MembershipFeeCategory string          `json:"membershipFeeCategory"`

	// Subscription amounts recognized as membership fees by the PayPal importer
	MembershipFeeAmounts []decimal.Decimal `json:"membershipFeeAmounts"`

	// OFX memos skipped on import unless overridden per call
	IgnoredMemos []string `json:"ignoredMemos"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Members
///////////////////////////////////////////////////////////////////////////////////////

type MembersConfig struct {
	// Receivable fees are only matched against transactions on or after this
	// date (the date fees started being created automatically)
	MatchCutoverDate string `json:"matchCutoverDate"`

	// Days after the period start before an unpaid fee becomes due
	FeeDueDays int `json:"feeDueDays"`
}

///////////////////////////////////////////////////////////////////////////////////////
// Metrics
///////////////////////////////////////////////////////////////////////////////////////

type MetricsConfig struct {
	Database           string `json:"database"`
	RunsMeasurement    string `json:"runsMeasurement"`
	SummaryMeasurement string `json:"summaryMeasurement"`
}

type InfluxSecrets struct {
	InfluxEndpoint string `env:"INFLUX_ENDPOINT"`
	InfluxUsername string `env:"INFLUX_USERNAME"`
	InfluxPassword string `env:"INFLUX_PASSWORD"`
}

type SqlSecrets struct {
	SqlHost     string `env:"SQL_HOST"`
	SqlUsername string `env:"SQL_USERNAME"`
	SqlPassword string `env:"SQL_PASSWORD"`
}
