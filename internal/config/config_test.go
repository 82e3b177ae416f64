package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"relay": { "url": "ws://relay.example:9000" },
		"match": { "seed": "abc" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "ws://relay.example:9000", viper.GetString("relay.url"))
	assert.Equal(t, "abc", viper.GetString("match.seed"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./landerlogs", viper.GetString("logsDir"))
	assert.Equal(t, "ws://localhost:4711", viper.GetString("relay.url"))
	assert.Equal(t, "", viper.GetString("match.seed"))
	assert.Equal(t, 5, viper.GetInt("match.observeEvery"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "lander_telemetry", viper.GetString("influx.bucket"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "lander", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetMatchConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetMatchConfig()
	assert.Equal(t, "", cfg.Seed)
	assert.Equal(t, 25*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 5, cfg.ObserveEvery)
	assert.Equal(t, 1024, cfg.CommandBacklogCap)
	assert.Equal(t, uint64(400), cfg.CommandHorizon)
	assert.Equal(t, 1024, cfg.InboxCap)
}

func TestGetMatchConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"match": {
			"seed": "tranquility",
			"tickInterval": "40ms",
			"observeEvery": 10,
			"commandBacklogCap": 16,
			"commandHorizon": 80
		}
	}`)))

	cfg := GetMatchConfig()
	assert.Equal(t, "tranquility", cfg.Seed)
	assert.Equal(t, 40*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 10, cfg.ObserveEvery)
	assert.Equal(t, 16, cfg.CommandBacklogCap)
	assert.Equal(t, uint64(80), cfg.CommandHorizon)
}

func TestGetTerrainConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"terrain": {"octaves": 6}}`)))

	cfg := GetTerrainConfig()
	assert.Equal(t, 10000.0, cfg.Width)
	assert.Equal(t, 350, cfg.Segments)
	assert.Equal(t, 6, cfg.Octaves)
	assert.Equal(t, 4.0, cfg.Roughness)
	assert.Equal(t, 0.15, cfg.Flatness)
}

func TestGetPhysicsConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetPhysicsConfig()
	assert.Equal(t, 0.05, cfg.Gravity)
	assert.Equal(t, 0.12, cfg.Thrust)
	assert.Equal(t, 1.0, cfg.BurnRate)
	assert.Equal(t, 0.004, cfg.SpinAccel)
	assert.Equal(t, 0.06, cfg.MaxSpin)
	assert.Equal(t, 1.5, cfg.MaxLandingSpeed)
	assert.Equal(t, 0.3, cfg.MaxLandingTilt)
	assert.Equal(t, 40.0, cfg.FlagRadius)
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"influx": { "enabled": true, "host": "influx.local", "port": "9999", "token": "t0k" }
	}`)))

	cfg := GetInfluxConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "http://influx.local:9999", cfg.URL())
	assert.Equal(t, "t0k", cfg.Token)
	assert.Equal(t, "lander", cfg.Org)
	assert.Equal(t, "lander_telemetry", cfg.Bucket)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "lander", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, 10*time.Second, cfg.MetricInterval)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "lander-eu",
			"batchTimeout": "30s",
			"endpoint": "localhost:4318",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "lander-eu", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4318", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestLoad_IsNotFound(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("boom")))

	// defaults stay usable without a file
	assert.Equal(t, "ws://localhost:4711", GetString("relay.url"))
}

func TestBindFlags(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"match": {"seed": "from-file"}, "logLevel": "warn"}`)))

	fs := pflag.NewFlagSet("lander", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--seed", "from-flag", "--relay=ws://relay:1"}))
	require.NoError(t, BindFlags(fs))

	assert.Equal(t, "from-flag", GetMatchConfig().Seed)
	assert.Equal(t, "ws://relay:1", GetString("relay.url"))
	// unset flags leave the file value alone
	assert.Equal(t, "warn", GetString("logLevel"))
}
