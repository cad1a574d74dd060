package config

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

// mapBackend is an in-memory ConfigBackend.
type mapBackend struct {
	data map[string]string
}

func newMapBackend(kv ...string) *mapBackend {
	b := &mapBackend{data: make(map[string]string)}
	for i := 0; i+1 < len(kv); i += 2 {
		b.data[kv[i]] = kv[i+1]
	}
	return b
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(v)
	return i, true, err
}

func (b *mapBackend) SetString(key, val string) error {
	b.data[key] = val
	return nil
}

func (b *mapBackend) SetInt(key string, val int) error {
	b.data[key] = strconv.Itoa(val)
	return nil
}

func (b *mapBackend) Delete(key string) error {
	delete(b.data, key)
	return nil
}

// mockKeychain is a test double for the Keychain interface.
type mockKeychain struct {
	secrets map[string]string
	setErr  error
}

func (m *mockKeychain) Get(service, account string) (string, error) {
	v, ok := m.secrets[service+"/"+account]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m *mockKeychain) Set(service, account, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.secrets == nil {
		m.secrets = make(map[string]string)
	}
	m.secrets[service+"/"+account] = value
	return nil
}

// TestDefaults verifies all default values are applied when the backend is empty.
func TestDefaults(t *testing.T) {
	cfg, err := loadWith(newMapBackend())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Engine.Provider != "ollama" {
		t.Errorf("Engine.Provider = %q, want ollama", cfg.Engine.Provider)
	}
	if cfg.Engine.BaseURL != "http://localhost:11434" {
		t.Errorf("Engine.BaseURL = %q", cfg.Engine.BaseURL)
	}
	if cfg.Engine.EmbedModel != "" {
		t.Errorf("Engine.EmbedModel = %q, want empty (provider default)", cfg.Engine.EmbedModel)
	}
	if cfg.Embedding.Concurrency != 4 || !cfg.Embedding.Cache {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	want := AnalysisConfig{Clusters: 5, Seed: 42, Contamination: 0.1, Trees: 100, MaxIterations: 300}
	if cfg.Analysis != want {
		t.Errorf("Analysis = %+v, want %+v", cfg.Analysis, want)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
}

func TestBackendValues(t *testing.T) {
	b := newMapBackend(
		"server.port", "5000",
		"engine.provider", "fastembed",
		"embedding.cache", "false",
		"embedding.requests_per_second", "2.5",
		"analysis.contamination", "0.2",
		"storage.data_dir", "/tmp/lifelens-test",
	)
	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Engine.Provider != "fastembed" {
		t.Errorf("Engine.Provider = %q", cfg.Engine.Provider)
	}
	if cfg.Embedding.Cache {
		t.Error("Embedding.Cache = true, want false")
	}
	if cfg.Embedding.RequestsPerSecond != 2.5 {
		t.Errorf("RequestsPerSecond = %v, want 2.5", cfg.Embedding.RequestsPerSecond)
	}
	if cfg.Analysis.Contamination != 0.2 {
		t.Errorf("Contamination = %v, want 0.2", cfg.Analysis.Contamination)
	}
	if cfg.Storage.DataDir != "/tmp/lifelens-test" {
		t.Errorf("DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestBackendUnparseableValueKeepsDefault(t *testing.T) {
	cfg, err := loadWith(newMapBackend("analysis.contamination", "lots"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Analysis.Contamination != 0.1 {
		t.Errorf("Contamination = %v, want default 0.1", cfg.Analysis.Contamination)
	}
}

func TestBackendBadIntIsError(t *testing.T) {
	if _, err := loadWith(newMapBackend("server.port", "high")); err == nil {
		t.Error("expected error for non-integer port")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LIFELENS_SERVER_PORT", "9000")
	t.Setenv("LIFELENS_ANALYSIS_CLUSTERS", "3")
	t.Setenv("LIFELENS_EMBEDDING_CACHE", "false")
	t.Setenv("LIFELENS_LOG_LEVEL", "debug")
	t.Setenv("LIFELENS_ANALYSIS_TREES", "not-a-number")

	cfg, err := loadWith(newMapBackend("server.port", "5000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000 (env wins)", cfg.Server.Port)
	}
	if cfg.Analysis.Clusters != 3 {
		t.Errorf("Clusters = %d, want 3", cfg.Analysis.Clusters)
	}
	if cfg.Embedding.Cache {
		t.Error("Embedding.Cache = true, want false")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Analysis.Trees != 100 {
		t.Errorf("Trees = %d, want default after bad env value", cfg.Analysis.Trees)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"provider", func(c *Config) { c.Engine.Provider = "mlx" }, "engine.provider"},
		{"concurrency", func(c *Config) { c.Embedding.Concurrency = 0 }, "embedding.concurrency"},
		{"clusters", func(c *Config) { c.Analysis.Clusters = 0 }, "analysis.clusters"},
		{"contamination high", func(c *Config) { c.Analysis.Contamination = 1 }, "analysis.contamination"},
		{"contamination zero", func(c *Config) { c.Analysis.Contamination = 0 }, "analysis.contamination"},
		{"trees", func(c *Config) { c.Analysis.Trees = 0 }, "analysis.trees"},
		{"seed", func(c *Config) { c.Analysis.Seed = -1 }, "analysis.seed"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}

	if err := defaults().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestSetKey(t *testing.T) {
	b := newMapBackend()

	if err := setKeyWith(b, "analysis.clusters", "7"); err != nil {
		t.Fatalf("set clusters: %v", err)
	}
	if err := setKeyWith(b, "embedding.cache", "0"); err != nil {
		t.Fatalf("set cache: %v", err)
	}
	if err := setKeyWith(b, "analysis.contamination", "0.05"); err != nil {
		t.Fatalf("set contamination: %v", err)
	}
	if b.data["analysis.clusters"] != "7" || b.data["embedding.cache"] != "false" || b.data["analysis.contamination"] != "0.05" {
		t.Errorf("backend = %v", b.data)
	}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Analysis.Clusters != 7 || cfg.Embedding.Cache || cfg.Analysis.Contamination != 0.05 {
		t.Errorf("reloaded config = %+v %+v", cfg.Analysis, cfg.Embedding)
	}
}

func TestSetKey_Rejects(t *testing.T) {
	b := newMapBackend()
	if err := setKeyWith(b, "nope", "1"); err == nil {
		t.Error("expected error for unknown key")
	}
	if err := setKeyWith(b, "server.port", "abc"); err == nil {
		t.Error("expected error for non-integer port")
	}
	if err := setKeyWith(b, "analysis.contamination", "1.5"); err == nil {
		t.Error("expected error for out-of-range contamination")
	}
	if len(b.data) != 0 {
		t.Errorf("rejected values were written: %v", b.data)
	}
}

func TestShowAllAndValidKeys(t *testing.T) {
	keys := ValidKeys()
	infos := ShowAll(defaults())
	if len(keys) != len(infos) {
		t.Fatalf("ValidKeys has %d entries, ShowAll %d", len(keys), len(infos))
	}
	for i, info := range infos {
		if info.Key != keys[i] {
			t.Errorf("entry %d: %q != %q", i, info.Key, keys[i])
		}
		if !strings.HasPrefix(info.EnvVar, "LIFELENS_") {
			t.Errorf("%s env var %q lacks prefix", info.Key, info.EnvVar)
		}
		if info.Key == "analysis.seed" && info.Value != "42" {
			t.Errorf("analysis.seed shown as %q", info.Value)
		}
	}
}

func TestGetAPIToken(t *testing.T) {
	t.Setenv("LIFELENS_API_TOKEN", "")

	kc := &mockKeychain{}
	tok, err := GetAPIToken(kc)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if len(tok) != 36 {
		t.Errorf("generated token %q is not a UUID", tok)
	}

	again, err := GetAPIToken(kc)
	if err != nil || again != tok {
		t.Errorf("second call = %q, %v; want stored %q", again, err, tok)
	}
}

func TestGetAPIToken_EnvWins(t *testing.T) {
	t.Setenv("LIFELENS_API_TOKEN", "from-env")
	tok, err := GetAPIToken(&mockKeychain{setErr: errors.New("locked")})
	if err != nil || tok != "from-env" {
		t.Errorf("GetAPIToken = %q, %v", tok, err)
	}
}

func TestGetAPIToken_StoreFailure(t *testing.T) {
	t.Setenv("LIFELENS_API_TOKEN", "")
	if _, err := GetAPIToken(&mockKeychain{setErr: errors.New("locked")}); err == nil {
		t.Error("expected error when the keychain cannot store the token")
	}
}
