package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwsl/btaudiod/internal/codec/ldac"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "enable:\n  a2dp_sink: true\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 127, cfg.A2DP.Volume)
	require.Equal(t, "org.btaudio", cfg.Bus.ServiceName)
	require.Equal(t, "/org/btaudio", cfg.Bus.RootPath)
	require.True(t, cfg.Enable.A2DPSink)
	require.True(t, cfg.AnyProfileEnabled())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsOutOfRangeVolume(t *testing.T) {
	cfg := &Config{A2DP: A2DPConfig{Volume: 200}, LDAC: LDACConfig{EQMID: ldac.QualityHigh}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsMQTTWithoutBroker(t *testing.T) {
	cfg := &Config{A2DP: A2DPConfig{Volume: 64}, LDAC: LDACConfig{EQMID: ldac.QualityHigh}, MQTT: MQTTConfig{Enabled: true}}
	require.Error(t, cfg.Validate())
}

func TestAnyProfileEnabledFalseByDefault(t *testing.T) {
	var cfg Config
	require.False(t, cfg.AnyProfileEnabled())
}
