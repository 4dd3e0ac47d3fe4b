package configuration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "GRC_CONSOLE_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "pkg", "crud")
	requireMkdirAll(t, sub)

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(sub); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	_ = os.Unsetenv("GRC_CONSOLE_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 env file loaded, got %d", n)
	}
	if got := os.Getenv("GRC_CONSOLE_TEST_ENV_LOAD"); got != "ok" {
		t.Fatalf("expected env var loaded from repo root, got %q", got)
	}
}

func TestObjectCacheOptions_Validate(t *testing.T) {
	require.NoError(t, (&ObjectCacheOptions{Storage: "memory"}).Validate())
	require.NoError(t, (&ObjectCacheOptions{Storage: "redis", RedisURL: "redis://localhost:6379/0"}).Validate())
	require.Error(t, (&ObjectCacheOptions{Storage: "memcached"}).Validate())
	require.Error(t, (&ObjectCacheOptions{Storage: "redis"}).Validate())
	require.Error(t, (&ObjectCacheOptions{Storage: "memory", TTL: -time.Second}).Validate())
	require.Error(t, (&ObjectCacheOptions{Storage: "memory", Size: -1}).Validate())
}

func TestValidateUpstream_NormalizesBaseURLAndQueryPath(t *testing.T) {
	c := &Configuration{Upstream: UpstreamOptions{
		BaseURL:   "https://ggrc.example.com/",
		QueryPath: "query",
		Timeout:   time.Second,
	}}
	require.NoError(t, c.validateUpstream())
	require.Equal(t, "https://ggrc.example.com", c.Upstream.BaseURL)
	require.Equal(t, "/query", c.Upstream.QueryPath)

	c.Upstream.BaseURL = "not a url"
	require.Error(t, c.validateUpstream())
}

func TestValidateUnmap_RejectsNonPositivePageSizes(t *testing.T) {
	require.NoError(t, (&Configuration{Unmap: UnmapOptions{PageSizes: []int{5, 10, 15}}}).validateUnmap())
	require.Error(t, (&Configuration{Unmap: UnmapOptions{PageSizes: nil}}).validateUnmap())
	require.Error(t, (&Configuration{Unmap: UnmapOptions{PageSizes: []int{5, 0}}}).validateUnmap())
}

func TestCORSOrigins_DefaultsToOrigin(t *testing.T) {
	c := &Configuration{Origin: "http://localhost:3200"}
	require.Equal(t, []string{"http://localhost:3200"}, c.CORSOrigins())

	c.AllowedOrigins = " https://a.example.com, ,https://b.example.com "
	require.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, c.CORSOrigins())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

func TestRateLimitOptions_Validate(t *testing.T) {
	require.NoError(t, (&RateLimitOptions{}).Validate())
	require.NoError(t, (&RateLimitOptions{Enabled: true, GlobalRPS: 10, Storage: "memory"}).Validate())
	require.Error(t, (&RateLimitOptions{Enabled: true, GlobalRPS: 0, Storage: "memory"}).Validate())
	require.Error(t, (&RateLimitOptions{Enabled: true, GlobalRPS: 10, Storage: "redis"}).Validate())
	require.Error(t, (&RateLimitOptions{Enabled: true, GlobalRPS: 10, Storage: "disk"}).Validate())
}

func TestOpsGuardOptions_Validate(t *testing.T) {
	require.NoError(t, (&OpsGuardOptions{Networks: []string{"nonsense"}}).Validate())

	o := &OpsGuardOptions{Enabled: true, Networks: []string{"10.0.0.0/8", "", "2001:db8::1"}}
	require.NoError(t, o.Validate())
	nets, err := o.ParsedNetworks()
	require.NoError(t, err)
	require.Len(t, nets, 2)
	require.Equal(t, 128, nets[1].Bits())

	require.Error(t, (&OpsGuardOptions{Enabled: true, Networks: []string{"10.0.0.0/8", "nonsense"}}).Validate())
	require.Error(t, (&OpsGuardOptions{Enabled: true, BasicAuthUser: "ops"}).Validate())
}
