package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("SLOT_GRANULARITY", "")
	t.Setenv("AVAILABILITY_TOKENS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.SlotGranularity != 30*time.Minute {
		t.Fatalf("expected 30m slot granularity, got %s", cfg.SlotGranularity)
	}
	assert.Equal(t, []string{"Ocupar"}, cfg.AvailabilityTokens)
	assert.Equal(t, []string{"N"}, cfg.NameTokens)
	assert.Equal(t, []string{"T"}, cfg.PhoneTokens)
	assert.Equal(t, "54", cfg.PhoneCountryCode)
	assert.Equal(t, 3, cfg.LoyaltyRegularVisits)
	assert.Equal(t, "0 3 * * *", cfg.SyncCron)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "TEXT")
	t.Setenv("CALENDAR_FETCH_TIMEOUT", "3s")
	t.Setenv("SLOT_GRANULARITY", "15m")
	t.Setenv("AVAILABILITY_TOKENS", "Ocupar, Libre ,")
	t.Setenv("PHONE_AREA_CODES", "11,221")
	t.Setenv("LOYALTY_VIP_VISITS", "8")
	t.Setenv("REDIS_TLS", "true")
	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 3*time.Second, cfg.CalendarFetchTimeout)
	assert.Equal(t, 15*time.Minute, cfg.SlotGranularity)
	assert.Equal(t, []string{"Ocupar", "Libre"}, cfg.AvailabilityTokens)
	assert.Equal(t, []string{"11", "221"}, cfg.PhoneAreaCodes)
	assert.Equal(t, 8, cfg.LoyaltyVIPVisits)
	assert.True(t, cfg.RedisTLS)
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{ClinicTimezone: "Mars/Olympus"}
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.ClinicTimezone = "America/Argentina/Buenos_Aires"
	assert.Equal(t, "America/Argentina/Buenos_Aires", cfg.Location().String())
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PODOLOGY_TEST_KEY=from-file\nPODOLOGY_TEST_OTHER=file-only\n"), 0o600))

	t.Setenv("PODOLOGY_TEST_KEY", "from-env")
	t.Setenv("PODOLOGY_TEST_OTHER", "")
	require.NoError(t, os.Unsetenv("PODOLOGY_TEST_OTHER"))

	LoadDotEnv(path, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "from-env", os.Getenv("PODOLOGY_TEST_KEY"))
	assert.Equal(t, "file-only", os.Getenv("PODOLOGY_TEST_OTHER"))
}

func TestParseProviders(t *testing.T) {
	data := []byte(`
providers:
  - key: silvia
    name: Silvia Romero
    kind: google
    calendar_id: silvia@group.calendar.google.com
  - key: marcos
    kind: ICS
    url: https://calendars.example.com/marcos.ics
`)
	providers, err := ParseProviders(data)
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "Silvia Romero", providers[0].Name)
	assert.Equal(t, ProviderKindICS, providers[1].Kind)
	assert.Equal(t, "marcos", providers[1].Name)
}

func TestParseProvidersValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "providers: []"},
		{"missing key", "providers:\n  - kind: google\n    calendar_id: x"},
		{"duplicate", "providers:\n  - key: a\n    kind: ics\n    url: u\n  - key: a\n    kind: ics\n    url: u"},
		{"google without calendar", "providers:\n  - key: a\n    kind: google"},
		{"ics without url", "providers:\n  - key: a\n    kind: ics"},
		{"unknown kind", "providers:\n  - key: a\n    kind: outlook"},
		{"bad yaml", "providers: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProviders([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
