package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Wizard drives the interactive configuration prompts for the init and
// configure subcommands.
type Wizard struct {
	in  *bufio.Reader
	out io.Writer
}

// NewWizard creates a wizard reading answers from in and printing prompts to
// out.
func NewWizard(in io.Reader, out io.Writer) *Wizard {
	return &Wizard{in: bufio.NewReader(in), out: out}
}

// Run walks through every required field and returns a validated config.
// Defaults shown in brackets are kept when the answer is empty.
func (w *Wizard) Run(defaults *Config) (*Config, error) {
	if defaults == nil {
		defaults = &Config{
			SendingCriteria:   SendingCriteria{Type: CriteriaColumnFilled, Column: "F"},
			FollowUpIntervals: []int{0, 4, 7, 7},
			ColumnMapping: ColumnMapping{
				Domain: "A", EmailAddress: "B", Name: "C",
				Salutation: "D", PhoneNumber: "E", InitialEmailDate: "F",
			},
			Database: DatabaseConfig{
				Host: "localhost", Port: 5432, User: "postgres",
				Password: "postgres", DBName: "mailscheduler", SSLMode: "disable",
			},
			Google:   GoogleConfig{CredentialsFile: "credentials.json", TokenFile: "token.json"},
			LogLevel: "info",
		}
	}
	cfg := *defaults

	var err error
	if cfg.SpreadsheetID, err = w.prompt("Spreadsheet id", cfg.SpreadsheetID); err != nil {
		return nil, err
	}
	if cfg.SheetTitle, err = w.prompt("Sheet title (empty for first sheet)", cfg.SheetTitle); err != nil {
		return nil, err
	}
	if cfg.SenderEmail, err = w.prompt("Sender email address", cfg.SenderEmail); err != nil {
		return nil, err
	}
	draft, err := w.prompt("Save as draft instead of sending (true/false)", strconv.FormatBool(cfg.SaveAsDraft))
	if err != nil {
		return nil, err
	}
	if cfg.SaveAsDraft, err = strconv.ParseBool(draft); err != nil {
		return nil, fmt.Errorf("expected true or false, got %q", draft)
	}

	intervals := make([]string, len(cfg.FollowUpIntervals))
	for i, interval := range cfg.FollowUpIntervals {
		intervals[i] = strconv.Itoa(interval)
	}
	rawIntervals, err := w.prompt("Follow-up intervals in days, comma separated", strings.Join(intervals, ","))
	if err != nil {
		return nil, err
	}
	if cfg.FollowUpIntervals, err = parseIntervals(rawIntervals); err != nil {
		return nil, err
	}

	if cfg.ColumnMapping.EmailAddress, err = w.prompt("Email address column", cfg.ColumnMapping.EmailAddress); err != nil {
		return nil, err
	}
	if cfg.ColumnMapping.InitialEmailDate, err = w.prompt("Initial email date column", cfg.ColumnMapping.InitialEmailDate); err != nil {
		return nil, err
	}

	criteria, err := w.prompt("Sending criteria (COLUMN_FILLED, COLUMN_VALUE_MATCH, COLUMN_PATTERN_MATCH, STATUS_CHECK, CUSTOM)", string(cfg.SendingCriteria.Type))
	if err != nil {
		return nil, err
	}
	cfg.SendingCriteria.Type = SendingCriteriaType(strings.ToUpper(strings.TrimSpace(criteria)))
	if cfg.SendingCriteria.Column, err = w.prompt("Sending criteria column", cfg.SendingCriteria.Column); err != nil {
		return nil, err
	}
	switch cfg.SendingCriteria.Type {
	case CriteriaColumnValueMatch:
		if cfg.SendingCriteria.Value, err = w.prompt("Value the column must equal", cfg.SendingCriteria.Value); err != nil {
			return nil, err
		}
	case CriteriaColumnPatternMatch:
		if cfg.SendingCriteria.Pattern, err = w.prompt("Regular expression the column must match", cfg.SendingCriteria.Pattern); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ModifyField prompts for a new value of one named field and returns the
// updated copy. Field names match the .env keys.
func (w *Wizard) ModifyField(cfg *Config, field string) (*Config, error) {
	next := *cfg
	var err error
	switch strings.ToUpper(field) {
	case "SPREADSHEET_ID":
		next.SpreadsheetID, err = w.prompt("Spreadsheet id", cfg.SpreadsheetID)
	case "SHEET_TITLE":
		next.SheetTitle, err = w.prompt("Sheet title", cfg.SheetTitle)
	case "SENDER_EMAIL":
		next.SenderEmail, err = w.prompt("Sender email address", cfg.SenderEmail)
	case "SAVE_AS_DRAFT":
		var raw string
		raw, err = w.prompt("Save as draft (true/false)", strconv.FormatBool(cfg.SaveAsDraft))
		if err == nil {
			next.SaveAsDraft, err = strconv.ParseBool(raw)
		}
	case "FOLLOWUP_INTERVALS":
		var raw string
		raw, err = w.prompt("Follow-up intervals in days, comma separated", "")
		if err == nil {
			next.FollowUpIntervals, err = parseIntervals(raw)
		}
	case "HISTORY_RANGE":
		next.HistoryRange, err = w.prompt("History range (A1 notation)", cfg.HistoryRange)
	case "LOG_LEVEL":
		next.LogLevel, err = w.prompt("Log level", cfg.LogLevel)
	default:
		return nil, fmt.Errorf("unknown configuration field %q", field)
	}
	if err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

func (w *Wizard) prompt(label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(w.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(w.out, "%s: ", label)
	}
	line, err := w.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	answer := strings.TrimSpace(line)
	if answer == "" {
		return current, nil
	}
	return answer, nil
}
