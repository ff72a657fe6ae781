package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override, e.g. LOADPROFILE_HTTP_ADDR.
	EnvPrefix = "LOADPROFILE"
	// PathEnv names the optional YAML file.
	PathEnv = "LOADPROFILE_CONFIG"
)

// Config is the service configuration.
type Config struct {
	HTTPAddr        string        `yaml:"http_addr" envconfig:"HTTP_ADDR" validate:"required"`
	DatabaseURL     string        `yaml:"database_url" envconfig:"DATABASE_URL"`
	JWTSecret       string        `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
	TenantID        string        `yaml:"tenant_id" envconfig:"TENANT_ID"`
	HolidayFile     string        `yaml:"holiday_file" envconfig:"HOLIDAY_FILE"`
	MaxUploadMB     int64         `yaml:"max_upload_mb" envconfig:"MAX_UPLOAD_MB" validate:"min=1,max=1024"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	Source          SourceConfig  `yaml:"source" envconfig:"SOURCE"`
	Export          ExportConfig  `yaml:"export" envconfig:"EXPORT"`
}

// SourceConfig controls how uploads are read and interpreted.
type SourceConfig struct {
	WorkbookHeaderRow int    `yaml:"workbook_header_row" envconfig:"WORKBOOK_HEADER_ROW" validate:"min=1"`
	CSVHeaderRow      int    `yaml:"csv_header_row" envconfig:"CSV_HEADER_ROW" validate:"min=1"`
	Encoding          string `yaml:"encoding" envconfig:"ENCODING" validate:"oneof=auto utf-8 utf8 shift_jis shift-jis sjis cp932"`
	LabelConvention   string `yaml:"label_convention" envconfig:"LABEL_CONVENTION" validate:"oneof=start end"`
}

// ExportConfig points at the destination template and its grid.
type ExportConfig struct {
	TemplatePath string     `yaml:"template_path" envconfig:"TEMPLATE_PATH"`
	RawSheets    bool       `yaml:"raw_sheets" envconfig:"RAW_SHEETS"`
	Grid         GridConfig `yaml:"grid" envconfig:"GRID"`
}

// GridConfig places the matrix in the template.
type GridConfig struct {
	Sheet           string `yaml:"sheet" envconfig:"SHEET" validate:"required"`
	WeekdayStartCol int    `yaml:"weekday_start_col" envconfig:"WEEKDAY_START_COL" validate:"min=1"`
	HolidayStartCol int    `yaml:"holiday_start_col" envconfig:"HOLIDAY_START_COL" validate:"min=1"`
	FirstSlotRow    int    `yaml:"first_slot_row" envconfig:"FIRST_SLOT_ROW" validate:"min=1"`
	DayCountRow     int    `yaml:"day_count_row" envconfig:"DAY_COUNT_ROW" validate:"min=1"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		MaxUploadMB:     32,
		ShutdownTimeout: 10 * time.Second,
		Source: SourceConfig{
			WorkbookHeaderRow: 5,
			CSVHeaderRow:      1,
			Encoding:          "auto",
			LabelConvention:   "start",
		},
		Export: ExportConfig{
			RawSheets: true,
			Grid: GridConfig{
				Sheet:           "Sheet1",
				WeekdayStartCol: 3,
				HolidayStartCol: 17,
				FirstSlotRow:    4,
				DayCountRow:     52,
			},
		},
	}
}

// Load applies defaults, then the YAML file at path (if any), then LOADPROFILE_* overrides,
// and validates the result. An empty path falls back to $LOADPROFILE_CONFIG.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("config: env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// MaxUploadBytes is the multipart size limit.
func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
