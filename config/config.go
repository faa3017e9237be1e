package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/spf13/viper"
)

// SendingCriteriaType is the closed taxonomy of conditions deciding whether a
// spreadsheet row becomes a recipient.
type SendingCriteriaType string

const (
	CriteriaColumnFilled       SendingCriteriaType = "COLUMN_FILLED"
	CriteriaColumnValueMatch   SendingCriteriaType = "COLUMN_VALUE_MATCH"
	CriteriaColumnPatternMatch SendingCriteriaType = "COLUMN_PATTERN_MATCH"
	CriteriaStatusCheck        SendingCriteriaType = "STATUS_CHECK"
	CriteriaCustom             SendingCriteriaType = "CUSTOM"
)

// Config is the immutable process configuration. Modifications produce a new
// record which Save persists atomically.
type Config struct {
	SpreadsheetID string
	SheetTitle    string
	SenderEmail   string
	SaveAsDraft   bool

	ColumnMapping     ColumnMapping
	SendingCriteria   SendingCriteria
	FollowUpIntervals []int
	HistoryRange      string

	Database DatabaseConfig
	Google   GoogleConfig
	LogLevel string
}

// ColumnMapping names the spreadsheet columns recipient rows are read from.
type ColumnMapping struct {
	Domain           string
	EmailAddress     string
	Name             string
	Salutation       string
	PhoneNumber      string
	InitialEmailDate string
}

// SendingCriteria is the row filter applied during recipient synchronization.
type SendingCriteria struct {
	Type    SendingCriteriaType
	Column  string
	Value   string
	Pattern string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// GoogleConfig locates the OAuth2 credential material.
type GoogleConfig struct {
	CredentialsFile string
	TokenFile       string
}

// LoadOptions contains options for loading configuration.
type LoadOptions struct {
	EnvFile string // optional environment file, e.g. ".env"
}

// Load loads the configuration, reading .env when present.
func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{EnvFile: ".env"})
}

// LoadWithOptions loads the configuration with the specified options.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	v.SetDefault("SHEET_TITLE", "")
	v.SetDefault("SAVE_AS_DRAFT", false)
	v.SetDefault("FOLLOWUP_INTERVALS", "0,4,7,7")
	v.SetDefault("HISTORY_RANGE", "")

	v.SetDefault("COLUMN_DOMAIN", "A")
	v.SetDefault("COLUMN_EMAIL_ADDRESS", "B")
	v.SetDefault("COLUMN_NAME", "C")
	v.SetDefault("COLUMN_SALUTATION", "D")
	v.SetDefault("COLUMN_PHONE_NUMBER", "E")
	v.SetDefault("COLUMN_INITIAL_EMAIL_DATE", "F")

	v.SetDefault("SENDING_CRITERIA_TYPE", string(CriteriaColumnFilled))
	v.SetDefault("SENDING_CRITERIA_COLUMN", "F")
	v.SetDefault("SENDING_CRITERIA_VALUE", "")
	v.SetDefault("SENDING_CRITERIA_PATTERN", "")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mailscheduler")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "credentials.json")
	v.SetDefault("GOOGLE_TOKEN_FILE", "token.json")
	v.SetDefault("LOG_LEVEL", "info")

	if opts.EnvFile != "" {
		v.SetConfigName(opts.EnvFile)
		v.SetConfigType("env")

		currentPath, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("error getting current directory: %w", err)
		}
		v.AddConfigPath(currentPath)

		if err := v.ReadInConfig(); err != nil {
			// It's okay if the config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	intervals, err := parseIntervals(v.GetString("FOLLOWUP_INTERVALS"))
	if err != nil {
		return nil, err
	}

	config := &Config{
		SpreadsheetID: v.GetString("SPREADSHEET_ID"),
		SheetTitle:    v.GetString("SHEET_TITLE"),
		SenderEmail:   v.GetString("SENDER_EMAIL"),
		SaveAsDraft:   v.GetBool("SAVE_AS_DRAFT"),
		ColumnMapping: ColumnMapping{
			Domain:           v.GetString("COLUMN_DOMAIN"),
			EmailAddress:     v.GetString("COLUMN_EMAIL_ADDRESS"),
			Name:             v.GetString("COLUMN_NAME"),
			Salutation:       v.GetString("COLUMN_SALUTATION"),
			PhoneNumber:      v.GetString("COLUMN_PHONE_NUMBER"),
			InitialEmailDate: v.GetString("COLUMN_INITIAL_EMAIL_DATE"),
		},
		SendingCriteria: SendingCriteria{
			Type:    SendingCriteriaType(v.GetString("SENDING_CRITERIA_TYPE")),
			Column:  v.GetString("SENDING_CRITERIA_COLUMN"),
			Value:   v.GetString("SENDING_CRITERIA_VALUE"),
			Pattern: v.GetString("SENDING_CRITERIA_PATTERN"),
		},
		FollowUpIntervals: intervals,
		HistoryRange:      v.GetString("HISTORY_RANGE"),
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Google: GoogleConfig{
			CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
			TokenFile:       v.GetString("GOOGLE_TOKEN_FILE"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that the required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("SPREADSHEET_ID is required")
	}
	if c.SenderEmail == "" {
		return fmt.Errorf("SENDER_EMAIL is required")
	}
	if !govalidator.IsEmail(c.SenderEmail) {
		return fmt.Errorf("SENDER_EMAIL %q is not a valid address", c.SenderEmail)
	}
	switch c.SendingCriteria.Type {
	case CriteriaColumnFilled, CriteriaColumnValueMatch, CriteriaColumnPatternMatch, CriteriaStatusCheck, CriteriaCustom:
	default:
		return fmt.Errorf("SENDING_CRITERIA_TYPE %q is not one of COLUMN_FILLED, COLUMN_VALUE_MATCH, COLUMN_PATTERN_MATCH, STATUS_CHECK, CUSTOM", c.SendingCriteria.Type)
	}
	if c.SendingCriteria.Type == CriteriaColumnValueMatch && c.SendingCriteria.Value == "" {
		return fmt.Errorf("SENDING_CRITERIA_VALUE is required for COLUMN_VALUE_MATCH")
	}
	if c.SendingCriteria.Type == CriteriaColumnPatternMatch && c.SendingCriteria.Pattern == "" {
		return fmt.Errorf("SENDING_CRITERIA_PATTERN is required for COLUMN_PATTERN_MATCH")
	}
	if len(c.FollowUpIntervals) == 0 {
		return fmt.Errorf("FOLLOWUP_INTERVALS must name at least the initial step")
	}
	for i, interval := range c.FollowUpIntervals {
		if interval < 0 {
			return fmt.Errorf("FOLLOWUP_INTERVALS entry %d is negative", i)
		}
	}
	return nil
}

// Save persists the configuration as a .env-format file. The write is atomic:
// a temp file in the same directory is renamed over the target.
func (c *Config) Save(path string) error {
	entries := c.envEntries()
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s=%s\n", key, entries[key])
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".env-*")
	if err != nil {
		return fmt.Errorf("failed to create temp config file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close config file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

func (c *Config) envEntries() map[string]string {
	intervals := make([]string, len(c.FollowUpIntervals))
	for i, interval := range c.FollowUpIntervals {
		intervals[i] = strconv.Itoa(interval)
	}
	return map[string]string{
		"SPREADSHEET_ID":            c.SpreadsheetID,
		"SHEET_TITLE":               c.SheetTitle,
		"SENDER_EMAIL":              c.SenderEmail,
		"SAVE_AS_DRAFT":             strconv.FormatBool(c.SaveAsDraft),
		"FOLLOWUP_INTERVALS":        strings.Join(intervals, ","),
		"HISTORY_RANGE":             c.HistoryRange,
		"COLUMN_DOMAIN":             c.ColumnMapping.Domain,
		"COLUMN_EMAIL_ADDRESS":      c.ColumnMapping.EmailAddress,
		"COLUMN_NAME":               c.ColumnMapping.Name,
		"COLUMN_SALUTATION":         c.ColumnMapping.Salutation,
		"COLUMN_PHONE_NUMBER":       c.ColumnMapping.PhoneNumber,
		"COLUMN_INITIAL_EMAIL_DATE": c.ColumnMapping.InitialEmailDate,
		"SENDING_CRITERIA_TYPE":     string(c.SendingCriteria.Type),
		"SENDING_CRITERIA_COLUMN":   c.SendingCriteria.Column,
		"SENDING_CRITERIA_VALUE":    c.SendingCriteria.Value,
		"SENDING_CRITERIA_PATTERN":  c.SendingCriteria.Pattern,
		"DB_HOST":                   c.Database.Host,
		"DB_PORT":                   strconv.Itoa(c.Database.Port),
		"DB_USER":                   c.Database.User,
		"DB_PASSWORD":               c.Database.Password,
		"DB_NAME":                   c.Database.DBName,
		"DB_SSLMODE":                c.Database.SSLMode,
		"GOOGLE_CREDENTIALS_FILE":   c.Google.CredentialsFile,
		"GOOGLE_TOKEN_FILE":         c.Google.TokenFile,
		"LOG_LEVEL":                 c.LogLevel,
	}
}

func parseIntervals(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	intervals := make([]int, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("FOLLOWUP_INTERVALS entry %q is not a number", part)
		}
		intervals = append(intervals, value)
	}
	return intervals, nil
}
