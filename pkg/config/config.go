package config

import (
	"encoding/json"
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/Shopify/ejson"
	"github.com/caarlos0/env/v6"
	"github.com/ghodss/yaml"
	"github.com/shopspring/decimal"
)

var config Config
var secrets Secrets

func ReadConfig(configEnvVar, configFile, secretsFile string) error {
	_, err := readConfig(configEnvVar, configFile)
	if err != nil {
		return err
	}

	_, err = readSecrets(secretsFile)
	if err != nil {
		return err
	}

	applyDefaults(&config)

	return nil
}

func CurrentConfig() *Config {
	return &config
}

func CurrentSecrets() *Secrets {
	return &secrets
}

func CurrentBookkeepingConfig() *BookkeepingConfig {
	return &config.Bookkeeping
}

func CurrentMembersConfig() *MembersConfig {
	return &config.Members
}

func CurrentMetricsConfig() *MetricsConfig {
	return &config.Metrics
}

func CurrentInfluxSecrets() *InfluxSecrets {
	return &secrets.Influx
}

func CurrentSqlSecrets() *SqlSecrets {
	return &secrets.SQL
}

func applyDefaults(c *Config) {
	if c.Bookkeeping.SQL.Database == "" {
		c.Bookkeeping.SQL.Database = "bookops"
	}

	if c.Bookkeeping.DonationThreshold.IsZero() {
		c.Bookkeeping.DonationThreshold = decimal.NewFromInt(50)
	}

	if c.Bookkeeping.UncategorizedCategory == "" {
		c.Bookkeeping.UncategorizedCategory = "Uncategorized"
	}

	if c.Bookkeeping.DonationCategory == "" {
		c.Bookkeeping.DonationCategory = "Doação"
	}

	if c.Bookkeeping.MembershipFeeCategory == "" {
		c.Bookkeeping.MembershipFeeCategory = "Contribuição Associativa"
	}

	if len(c.Bookkeeping.MembershipFeeAmounts) == 0 {
		c.Bookkeeping.MembershipFeeAmounts = []decimal.Decimal{
			decimal.NewFromInt(75),
			decimal.NewFromInt(85),
			decimal.NewFromInt(110),
		}
	}

	if c.Bookkeeping.IgnoredMemos == nil {
		c.Bookkeeping.IgnoredMemos = []string{
			"APLIC.INVEST FACIL",
			"APLIC.AUTOM.INVESTFACIL*",
			"RESGATE INVEST FACIL",
			"RESG.AUTOM.INVEST FACIL*",
		}
	}

	if c.Members.MatchCutoverDate == "" {
		c.Members.MatchCutoverDate = "2025-06-01"
	}

	if c.Members.FeeDueDays == 0 {
		c.Members.FeeDueDays = 10
	}

	if c.Metrics.Database == "" {
		c.Metrics.Database = "bookops"
	}

	if c.Metrics.RunsMeasurement == "" {
		c.Metrics.RunsMeasurement = "job_runs"
	}

	if c.Metrics.SummaryMeasurement == "" {
		c.Metrics.SummaryMeasurement = "cash_book_summary"
	}

	if c.UpdateFrequency == "" {
		c.UpdateFrequency = "@daily"
	}
}

func readConfig(envName, filename string) (*Config, error) {
	var raw []byte
	var err error

	rawEnv := os.Getenv(envName)
	if rawEnv != "" {
		fmt.Printf("Reading config from environment variable %s\n", envName)
		raw = []byte(rawEnv)
	} else {
		raw, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
	}

	err = yaml.Unmarshal(raw, &config)

	return &config, err
}

func readSecrets(filename string) (*Secrets, error) {
	ejsonSecrets, ejsonErr := readEjsonSecrets(filename)

	envSecrets, envErr := readEnvSecrets()

	if ejsonErr == nil && envErr == nil {
		err := mergo.Merge(envSecrets, *ejsonSecrets)
		secrets = *envSecrets
		if err != nil {
			return nil, fmt.Errorf("Failed to merge secrets: %v", err)
		}
	} else if ejsonErr != nil && envErr == nil {
		fmt.Printf("Warning: Error to parse ejson secret. Ejson error: %v\n", ejsonErr)
		secrets = *envSecrets
	} else if ejsonErr == nil && envErr != nil {
		fmt.Printf("Warning: Error to parse env secret. Env error: %v\n", envErr)
		secrets = *ejsonSecrets
	} else {
		return nil, fmt.Errorf("Failed to parse secrets. Ejson error: %v. Env error: %v", ejsonErr, envErr)
	}

	return &secrets, nil
}

func readEjsonSecrets(filename string) (*Secrets, error) {
	ejsonSecrets := Secrets{}
	ejsonKeyFile := os.Getenv("BOOKOPS_EJSON_SECRET_KEY")
	ejsonKey := []byte{}
	var err error

	if ejsonKeyFile != "" {
		ejsonKey, err = os.ReadFile(ejsonKeyFile)
		if err != nil {
			return nil, err
		}
	}
	raw, err := ejson.DecryptFile(filename, "/opt/ejson/keys", string(ejsonKey))
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(raw, &ejsonSecrets)
	return &ejsonSecrets, err
}

func readEnvSecrets() (*Secrets, error) {
	envSecrets := Secrets{}
	err := env.Parse(&envSecrets)
	return &envSecrets, err
}
