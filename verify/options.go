package verify

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/timewinder-dev/blockcheck/analysis"
)

const (
	TransportMemory = "memory"
	TransportRedis  = "redis"

	DefaultTimeout = 30 * time.Second
)

// Duration reads TOML strings such as "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Options configure one run. The TOML form lives in a [run] table.
type Options struct {
	Timeout     Duration `toml:"timeout"`
	Parallelism int      `toml:"parallelism"`
	Smart       bool     `toml:"smart"`
	Transport   string   `toml:"transport"`
	RedisURL    string   `toml:"redis_url"`
	// Trace names a file that receives every message as a JSON line.
	Trace string `toml:"trace"`
	// Visualize logs all traffic even without a trace file.
	Visualize bool `toml:"visualize"`

	// Engines overrides the propositional reference domain.
	Engines analysis.Factory `toml:"-"`
	// Reporter receives progress output; nil is silent.
	Reporter Reporter `toml:"-"`
}

type optionsFile struct {
	Run Options `toml:"run"`
}

func DefaultOptions() Options {
	return Options{
		Timeout:   Duration{DefaultTimeout},
		Transport: TransportMemory,
	}
}

func parseOptions(r io.Reader) (*Options, error) {
	out := optionsFile{Run: DefaultOptions()}
	if _, err := toml.NewDecoder(r).Decode(&out); err != nil {
		return nil, err
	}
	if err := out.Run.Validate(); err != nil {
		return nil, err
	}
	return &out.Run, nil
}

// LoadOptionsFromFile reads the [run] table of path. Missing keys keep
// their defaults.
func LoadOptionsFromFile(path string) (*Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseOptions(f)
}

func (o *Options) Validate() error {
	if o.Timeout.Duration <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	if o.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", o.Parallelism)
	}
	switch o.Transport {
	case TransportMemory:
	case TransportRedis:
		if o.RedisURL == "" {
			return fmt.Errorf("transport %s needs a redis_url", o.Transport)
		}
	default:
		return fmt.Errorf("unknown transport %q", o.Transport)
	}
	return nil
}
