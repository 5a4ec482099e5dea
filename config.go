package main

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/astei/anviltrim/trim"
)

const envPrefix = "ANVILTRIM"

// Keys shared by the command line flags, the config file and the environment.
const (
	keyWorld            = "world"
	keyMaxInhabitedTime = "max-inhabited-time"
	keyThresholdTicks   = "threshold-ticks"
	keyThreads          = "threads"
	keyDryRun           = "dry-run"
	keyDimension        = "dimension"
	keyRemoveMissing    = "remove-missing"
	keyRecompress       = "recompress"
	keyBackupDir        = "backup-dir"
	keyYes              = "yes"
	keyForce            = "force"
	keyJSON             = "json"
	keyConfig           = "config"
	keyLogLevel         = "log-level"
	keyLogFile          = "log-file"
)

var errNoThreshold = errors.New("no threshold given, use --max-inhabited-time or --threshold-ticks")

// options is everything the command needs after flags, config file and environment
// have been merged.
type options struct {
	trim  trim.Config
	yes   bool
	force bool
	json  bool

	logLevel string
	logFile  string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyThreads, runtime.NumCPU())
	v.SetDefault(keyLogLevel, "info")
	return v
}

// loadViper layers the config file and ANVILTRIM_* environment variables under the flags
// the user set explicitly.
func loadViper(c *cli.Context) (*viper.Viper, error) {
	v := newViper()
	if path := c.String(keyConfig); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	for _, f := range c.App.Flags {
		name := f.Names()[0]
		if name == keyConfig || !c.IsSet(name) {
			continue
		}
		switch f.(type) {
		case *cli.BoolFlag:
			v.Set(name, c.Bool(name))
		case *cli.IntFlag:
			v.Set(name, c.Int(name))
		case *cli.Int64Flag:
			v.Set(name, c.Int64(name))
		case *cli.StringSliceFlag:
			v.Set(name, c.StringSlice(name))
		default:
			v.Set(name, c.String(name))
		}
	}

	// The world may also be given as the only argument, as in `anviltrim -m 60 ./world`.
	if c.NArg() > 0 && !c.IsSet(keyWorld) {
		v.Set(keyWorld, c.Args().First())
	}
	return v, nil
}

func buildOptions(v *viper.Viper) (*options, error) {
	world := v.GetString(keyWorld)
	if world == "" {
		return nil, errors.New("no world folder given, use --world")
	}

	var threshold int64
	switch {
	case v.IsSet(keyThresholdTicks):
		threshold = v.GetInt64(keyThresholdTicks)
	case v.IsSet(keyMaxInhabitedTime):
		seconds := v.GetInt64(keyMaxInhabitedTime)
		if seconds < 0 {
			return nil, fmt.Errorf("%s must not be negative", keyMaxInhabitedTime)
		}
		threshold = trim.ThresholdFromSeconds(seconds)
	default:
		return nil, errNoThreshold
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%s must not be negative", keyThresholdTicks)
	}

	cfg := trim.DefaultConfig(world)
	cfg.Threshold = threshold
	cfg.DryRun = v.GetBool(keyDryRun)
	cfg.Dimensions = splitList(v.GetStringSlice(keyDimension))
	cfg.Workers = v.GetInt(keyThreads)
	cfg.Recompress = v.GetBool(keyRecompress)
	cfg.BackupDir = v.GetString(keyBackupDir)
	if v.GetBool(keyRemoveMissing) {
		cfg.MissingCounter = trim.RemoveMissing
	}

	return &options{
		trim:     cfg,
		yes:      v.GetBool(keyYes),
		force:    v.GetBool(keyForce),
		json:     v.GetBool(keyJSON),
		logLevel: v.GetString(keyLogLevel),
		logFile:  v.GetString(keyLogFile),
	}, nil
}

// splitList splits comma separated entries, as ANVILTRIM_DIMENSION=nether,end arrives as a
// single value.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
