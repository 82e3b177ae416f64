package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "lander.cfg.json"

// MatchConfig holds the lockstep settings. Every participant of a match must
// run with the same seed.
type MatchConfig struct {
	Seed              string        `json:"seed" mapstructure:"seed"`
	TickInterval      time.Duration `json:"tickInterval" mapstructure:"tickInterval"`
	ObserveEvery      int           `json:"observeEvery" mapstructure:"observeEvery"`
	CommandBacklogCap int           `json:"commandBacklogCap" mapstructure:"commandBacklogCap"`
	// CommandHorizon is how many ticks ahead of the match a command may be
	// stamped. Commands beyond it are dropped.
	CommandHorizon uint64 `json:"commandHorizon" mapstructure:"commandHorizon"`
	InboxCap       int    `json:"inboxCap" mapstructure:"inboxCap"`
}

// TerrainConfig holds the foreground terrain shape.
type TerrainConfig struct {
	Width     float64 `json:"width" mapstructure:"width"`
	Segments  int     `json:"segments" mapstructure:"segments"`
	Octaves   int     `json:"octaves" mapstructure:"octaves"`
	Roughness float64 `json:"roughness" mapstructure:"roughness"`
	Flatness  float64 `json:"flatness" mapstructure:"flatness"`
}

// PhysicsConfig holds the lander physics constants and landing policy.
type PhysicsConfig struct {
	Gravity         float64 `json:"gravity" mapstructure:"gravity"`
	Thrust          float64 `json:"thrust" mapstructure:"thrust"`
	BurnRate        float64 `json:"burnRate" mapstructure:"burnRate"`
	SpinAccel       float64 `json:"spinAccel" mapstructure:"spinAccel"`
	MaxSpin         float64 `json:"maxSpin" mapstructure:"maxSpin"`
	MaxLandingSpeed float64 `json:"maxLandingSpeed" mapstructure:"maxLandingSpeed"`
	MaxLandingTilt  float64 `json:"maxLandingTilt" mapstructure:"maxLandingTilt"`
	FlagRadius      float64 `json:"flagRadius" mapstructure:"flagRadius"`
}

// InfluxConfig holds InfluxDB telemetry settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	Bucket     string `json:"bucket" mapstructure:"bucket"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// URL returns the server address built from protocol, host and port.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	// MetricInterval is how often metrics are exported.
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./landerlogs")

	viper.SetDefault("relay.url", "ws://localhost:4711")

	viper.SetDefault("match.seed", "")
	viper.SetDefault("match.tickInterval", "25ms")
	viper.SetDefault("match.observeEvery", 5)
	viper.SetDefault("match.commandBacklogCap", 1024)
	viper.SetDefault("match.commandHorizon", 400)
	viper.SetDefault("match.inboxCap", 1024)

	viper.SetDefault("terrain.width", 10000)
	viper.SetDefault("terrain.segments", 350)
	viper.SetDefault("terrain.octaves", 9)
	viper.SetDefault("terrain.roughness", 4)
	viper.SetDefault("terrain.flatness", 0.15)

	viper.SetDefault("physics.gravity", 0.05)
	viper.SetDefault("physics.thrust", 0.12)
	viper.SetDefault("physics.burnRate", 1)
	viper.SetDefault("physics.spinAccel", 0.004)
	viper.SetDefault("physics.maxSpin", 0.06)
	viper.SetDefault("physics.maxLandingSpeed", 1.5)
	viper.SetDefault("physics.maxLandingTilt", 0.3)
	viper.SetDefault("physics.flagRadius", 40)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "lander")
	viper.SetDefault("influx.bucket", "lander_telemetry")
	viper.SetDefault("influx.backupPath", "./landerlogs/telemetry.lp.gz")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "lander")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "10s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// IsNotFound reports whether err from Load only means the config file is
// missing. Defaults are in effect in that case.
func IsNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"seed":      "match.seed",
	"relay":     "relay.url",
	"log-level": "logLevel",
	"logs-dir":  "logsDir",
}

// RegisterFlags adds the flags that can override config values to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("seed", "", "match seed shared by every participant")
	fs.String("relay", "", "relay WebSocket URL")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("logs-dir", "", "directory for log files")
}

// BindFlags makes flags set on the command line take precedence over the
// config file.
func BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetMatchConfig returns the match settings.
func GetMatchConfig() MatchConfig {
	return MatchConfig{
		Seed:              viper.GetString("match.seed"),
		TickInterval:      viper.GetDuration("match.tickInterval"),
		ObserveEvery:      viper.GetInt("match.observeEvery"),
		CommandBacklogCap: viper.GetInt("match.commandBacklogCap"),
		CommandHorizon:    viper.GetUint64("match.commandHorizon"),
		InboxCap:          viper.GetInt("match.inboxCap"),
	}
}

// GetTerrainConfig returns the foreground terrain settings.
func GetTerrainConfig() TerrainConfig {
	return TerrainConfig{
		Width:     viper.GetFloat64("terrain.width"),
		Segments:  viper.GetInt("terrain.segments"),
		Octaves:   viper.GetInt("terrain.octaves"),
		Roughness: viper.GetFloat64("terrain.roughness"),
		Flatness:  viper.GetFloat64("terrain.flatness"),
	}
}

// GetPhysicsConfig returns the lander physics settings.
func GetPhysicsConfig() PhysicsConfig {
	return PhysicsConfig{
		Gravity:         viper.GetFloat64("physics.gravity"),
		Thrust:          viper.GetFloat64("physics.thrust"),
		BurnRate:        viper.GetFloat64("physics.burnRate"),
		SpinAccel:       viper.GetFloat64("physics.spinAccel"),
		MaxSpin:         viper.GetFloat64("physics.maxSpin"),
		MaxLandingSpeed: viper.GetFloat64("physics.maxLandingSpeed"),
		MaxLandingTilt:  viper.GetFloat64("physics.maxLandingTilt"),
		FlagRadius:      viper.GetFloat64("physics.flagRadius"),
	}
}

// GetInfluxConfig returns the InfluxDB telemetry settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Protocol:   viper.GetString("influx.protocol"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}
