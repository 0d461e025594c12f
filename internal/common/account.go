package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/central-rogues/internal/models"
)

// AccountConfig is the credentials document for one Aruba Central account.
// Format (.env.yaml):
//
//	base_url: https://apigw-prod2.central.arubanetworks.com
//	client_id: abc
//	client_secret: "{secret}"
//	customer_id: "1234"
//	refresh_token: xyz
//	check_ssids: [CorpNet, CorpGuest]
//	sendgrid_api_key: SG.xxx
//	from_address: noc@example.com
//	to_addresses: [secops@example.com]
type AccountConfig struct {
	BaseURL           string     `yaml:"base_url" toml:"base_url" validate:"required,url"`
	ClientID          string     `yaml:"client_id" toml:"client_id" validate:"required"`
	ClientSecret      string     `yaml:"client_secret" toml:"client_secret" validate:"required"`
	CustomerID        string     `yaml:"customer_id" toml:"customer_id" validate:"required"`
	RefreshToken      string     `yaml:"refresh_token" toml:"refresh_token" validate:"required"`
	AccessToken       string     `yaml:"access_token" toml:"access_token"`
	AccessTokenExpiry *time.Time `yaml:"access_token_expiry" toml:"access_token_expiry"`
	Token             *TokenPair `yaml:"token,omitempty" toml:"token,omitempty" validate:"-"` // pycentral layout

	CheckSSIDs []string `yaml:"check_ssids" toml:"check_ssids"`

	SendGridAPIKey string     `yaml:"sendgrid_api_key" toml:"sendgrid_api_key"`
	FromAddress    string     `yaml:"from_address" toml:"from_address" validate:"omitempty,email"`
	ToAddresses    []string   `yaml:"to_addresses" toml:"to_addresses" validate:"omitempty,dive,email"`
	FromEmail      string     `yaml:"from_email,omitempty" toml:"from_email,omitempty" validate:"-"`
	ToEmails       []string   `yaml:"to_emails,omitempty" toml:"to_emails,omitempty" validate:"-"`
	Subject        string     `yaml:"subject" toml:"subject"`
	SMTP           SMTPConfig `yaml:"smtp" toml:"smtp"`
}

// TokenPair is the nested token block written by pycentral
type TokenPair struct {
	AccessToken  string `yaml:"access_token" toml:"access_token"`
	RefreshToken string `yaml:"refresh_token" toml:"refresh_token"`
}

// SMTPConfig configures the SMTP relay used by the smtp delivery mode
type SMTPConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
	UseTLS   bool   `yaml:"use_tls" toml:"use_tls"`
}

const defaultSubject = "Wireless Rogue AP Alert"

// LoadAccount reads the credentials document. A .toml extension is parsed as TOML,
// anything else as YAML. Secrets may be overridden from the environment.
func LoadAccount(path string) (*AccountConfig, error) {
	if path == "" {
		return nil, &ConfigError{Source: "credentials", Problems: []string{"credentials file path is empty"}}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Source: path, Err: fmt.Errorf("failed to read credentials file: %w", err)}
	}

	account := &AccountConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, account)
	default:
		err = yaml.Unmarshal(data, account)
	}
	if err != nil {
		return nil, &ConfigError{Source: path, Err: fmt.Errorf("failed to parse credentials file: %w", err)}
	}

	account.normalize()
	applyAccountEnvOverrides(account)

	return account, nil
}

// normalize folds the legacy key names into the canonical fields
func (a *AccountConfig) normalize() {
	if a.Token != nil {
		if a.AccessToken == "" {
			a.AccessToken = a.Token.AccessToken
		}
		if a.RefreshToken == "" {
			a.RefreshToken = a.Token.RefreshToken
		}
	}
	if a.FromAddress == "" {
		a.FromAddress = a.FromEmail
	}
	if len(a.ToAddresses) == 0 {
		a.ToAddresses = a.ToEmails
	}
	if a.Subject == "" {
		a.Subject = defaultSubject
	}
	if a.SMTP.Port == 0 {
		a.SMTP.Port = 25
	}
	a.BaseURL = strings.TrimRight(a.BaseURL, "/")
}

func applyAccountEnvOverrides(a *AccountConfig) {
	if v := os.Getenv("ROGUES_BASE_URL"); v != "" {
		a.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("ROGUES_CLIENT_ID"); v != "" {
		a.ClientID = v
	}
	if v := os.Getenv("ROGUES_CLIENT_SECRET"); v != "" {
		a.ClientSecret = v
	}
	if v := os.Getenv("ROGUES_CUSTOMER_ID"); v != "" {
		a.CustomerID = v
	}
	if v := os.Getenv("ROGUES_REFRESH_TOKEN"); v != "" {
		a.RefreshToken = v
	}
	if v := os.Getenv("ROGUES_SENDGRID_API_KEY"); v != "" {
		a.SendGridAPIKey = v
	}
	if v := os.Getenv("ROGUES_SMTP_PASSWORD"); v != "" {
		a.SMTP.Password = v
	}
}

// Validate checks required credentials plus the settings the selected delivery mode needs
func (a *AccountConfig) Validate(deliveryMode string) error {
	if err := validateStruct("credentials", a); err != nil {
		return err
	}

	var problems []string
	switch deliveryMode {
	case DeliveryModeSendGrid:
		if a.SendGridAPIKey == "" {
			problems = append(problems, "sendgrid_api_key is required for sendgrid delivery")
		}
		problems = append(problems, a.recipientProblems()...)
	case DeliveryModeSMTP:
		if a.SMTP.Host == "" {
			problems = append(problems, "smtp.host is required for smtp delivery")
		}
		problems = append(problems, a.recipientProblems()...)
	}

	if len(problems) > 0 {
		return &ConfigError{Source: "credentials", Problems: problems}
	}
	return nil
}

func (a *AccountConfig) recipientProblems() []string {
	var problems []string
	if a.FromAddress == "" {
		problems = append(problems, "from_address is required for email delivery")
	}
	if len(a.ToAddresses) == 0 {
		problems = append(problems, "to_addresses must list at least one recipient")
	}
	return problems
}

// Credentials returns the token-related subset owned by the Token Manager
func (a *AccountConfig) Credentials() models.Credentials {
	creds := models.Credentials{
		ClientID:     a.ClientID,
		ClientSecret: a.ClientSecret,
		CustomerID:   a.CustomerID,
		RefreshToken: a.RefreshToken,
		AccessToken:  a.AccessToken,
	}
	if a.AccessTokenExpiry != nil {
		creds.AccessTokenExpiry = *a.AccessTokenExpiry
	}
	return creds
}
