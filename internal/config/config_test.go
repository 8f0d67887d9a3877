package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ShippedConfigs(t *testing.T) {
	for _, name := range []string{"strategy.yaml", "strategy.toml"} {
		t.Run(name, func(t *testing.T) {
			s, err := Load(filepath.Join("..", "..", "configs", name))
			require.NoError(t, err)
			assert.Equal(t, Example(), s)
		})
	}
}

func TestParse_JSON(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "strategy.yaml"))
	require.NoError(t, err)
	s, err := Parse(data, FormatYAML)
	require.NoError(t, err)

	// JSON documents go through the same decoder.
	js := `{"tradeAmount":0.2,"maxTrades":3,"maxTradesPerToken":3,"tradeCooldown":120000,
"profitThreshold":1.0,"lossThreshold":-0.06,"momentumProfitThreshold":0.02,
"momentumProfitThresholds":{"threshold1":0.15,"threshold2":0.3,"threshold3":0.6,"threshold4":0.8},
"momentumPriceChangeThresholds":{"base":0.01,"threshold1":0.05,"threshold2":0.08,"threshold3":0.12,"threshold4":0.15},
"lossThresholdTrail":0.045,"lossPriceChangeThresholdTrail":0.01,"lossEarlyPriceChangeThreshold":0.005,
"neutralZonePriceChangeThreshold":0.005,"momentumStagnantTime":1200,"maxHoldTime":60000,
"marketCapLimits":{"min":28,"max":400},"pumpThreshold":0.05,"buyThreshold":3,"volumeThreshold":10,
"minVolume":1.5,"creatorOwnershipMax":0.2,"useDexScreenerFilter":true,"tradeCooldownEnabled":false,
"tradeCooldownProfitCap":5,"tradeCooldownDuration":3600}`
	fromJSON, err := Parse([]byte(js), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, s, fromJSON)
}

func TestParse_MissingKeyNamesPath(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "strategy.yaml"))
	require.NoError(t, err)

	tests := []struct {
		drop string
		want string
	}{
		{"maxHoldTime:", "maxHoldTime"},
		{"  threshold3: 0.6", "momentumProfitThresholds.threshold3"},
		{"  base:", "momentumPriceChangeThresholds.base"},
		{"  max:", "marketCapLimits.max"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, err := Parse([]byte(dropLine(string(data), tt.drop)), FormatYAML)
			require.ErrorIs(t, err, ErrMissingKey)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_RejectsUnknownKey(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "strategy.yaml"))
	require.NoError(t, err)

	_, err = Parse(append(data, []byte("slippage: 0.1\n")...), FormatYAML)
	require.ErrorIs(t, err, ErrUnknownKey)
	assert.Contains(t, err.Error(), "slippage")
}

func TestParse_InvalidValues(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "configs", "strategy.yaml"))
	require.NoError(t, err)

	bad := strings.Replace(string(data), "lossThreshold: -0.06", "lossThreshold: 0.06", 1)
	_, err = Parse([]byte(bad), FormatYAML)
	require.ErrorIs(t, err, ErrInvalidValue)
	assert.Contains(t, err.Error(), "lossThreshold")
}

func TestProvider_ReloadNotifiesEverySubscriber(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "..", "configs", "strategy.yaml"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, src, 0o600))

	p, err := NewProvider(path, zerolog.Nop())
	require.NoError(t, err)

	var got []int
	p.Subscribe(func(s *Strategy) { got = append(got, s.MaxTrades) })
	p.Subscribe(func(s *Strategy) { got = append(got, s.MaxTrades*10) })

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(src), "maxTrades: 3", "maxTrades: 4", 1)), 0o600))
	require.NoError(t, p.Reload())
	assert.Equal(t, []int{4, 40}, got)
	assert.Equal(t, 4, p.Current().MaxTrades)

	require.NoError(t, os.WriteFile(path, []byte(dropLine(string(src), "maxHoldTime:")), 0o600))
	require.Error(t, p.Reload())
	assert.Equal(t, []int{4, 40}, got)
	assert.Equal(t, 4, p.Current().MaxTrades)
}

func TestProvider_WatchReloadsAndKeepsLastGood(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("..", "..", "configs", "strategy.yaml"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, src, 0o600))

	p, err := NewProvider(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, p.Current().MaxTrades)

	notified := make(chan *Strategy, 4)
	p.Subscribe(func(s *Strategy) { notified <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Watch(ctx, 10*time.Millisecond)

	updated := strings.Replace(string(src), "maxTrades: 3", "maxTrades: 5", 1)
	writeWithNewMtime(t, path, updated, time.Now().Add(time.Second))

	select {
	case s := <-notified:
		assert.Equal(t, 5, s.MaxTrades)
	case <-time.After(2 * time.Second):
		t.Fatal("reload not observed")
	}
	assert.Equal(t, 5, p.Current().MaxTrades)

	// A broken edit is ignored.
	writeWithNewMtime(t, path, dropLine(updated, "maxHoldTime:"), time.Now().Add(2*time.Second))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 5, p.Current().MaxTrades)
	assert.Len(t, notified, 0)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("RPC_URL=http://rpc.local\nREDIS_DB=2\n"), 0o600))

	t.Setenv("WS_URL", "ws://ws.local")
	t.Setenv("WALLET_PRIVATE_KEY", "")
	t.Setenv("SWEEP_INTERVAL", "45s")

	env := LoadEnv(envFile)
	t.Cleanup(func() {
		os.Unsetenv("RPC_URL")
		os.Unsetenv("REDIS_DB")
	})

	assert.Equal(t, "http://rpc.local", env.RPCURL)
	assert.Equal(t, "ws://ws.local", env.WSURL)
	assert.Equal(t, 2, env.RedisDB)
	assert.Equal(t, 45*time.Second, env.SweepInterval)
	assert.ErrorContains(t, env.ValidateTrading(), "WALLET_PRIVATE_KEY")
}

func dropLine(doc, prefix string) string {
	var out []string
	for _, line := range strings.Split(doc, "\n") {
		if strings.HasPrefix(line, prefix) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func writeWithNewMtime(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}
