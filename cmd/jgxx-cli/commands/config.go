package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"lnprice/internal/components/telemetry"
	"lnprice/internal/scrapers/jgxx"
	"lnprice/lib/configutil"
	"lnprice/lib/restyutil"
)

const defaultRegion = "辽宁省"

type Config struct {
	BaseUrl           string           `json:"base_url"`
	TimeoutSeconds    int              `json:"timeout_seconds"`
	RetryAttempts     int              `json:"retry_attempts"`
	RetryDelaySeconds float64          `json:"retry_delay_seconds"`
	RequestsPerSecond float64          `json:"requests_per_second"`
	CloudflareBypass  bool             `json:"cloudflare_bypass"`
	Region            string           `json:"region"`
	DumpDir           string           `json:"dump_dir"`
	Telemetry         telemetry.Config `json:"telemetry"`
}

// loadConfig reads the config at path, a missing file means every default.
func loadConfig(path string) (Config, error) {
	out, err := configutil.ReadConfig[Config](path)
	if errors.Is(err, os.ErrNotExist) {
		out = Config{}
	} else if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if out.Region == "" {
		out.Region = defaultRegion
	}
	return out, nil
}

func (c Config) options() (jgxx.Options, error) {
	opts := jgxx.Options{
		BaseUrl:           c.BaseUrl,
		Timeout:           time.Duration(c.TimeoutSeconds) * time.Second,
		Attempts:          c.RetryAttempts,
		RetryDelay:        time.Duration(c.RetryDelaySeconds * float64(time.Second)),
		RequestsPerSecond: c.RequestsPerSecond,
		CloudflareBypass:  c.CloudflareBypass,
	}
	if c.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(c.DumpDir)
		if err != nil {
			return jgxx.Options{}, fmt.Errorf("create dump dir: %w", err)
		}
		opts.Dump = output
	}
	return opts, nil
}
