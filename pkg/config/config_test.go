package config

import (
	"testing"
	"time"
)

// TestLoad はLoad関数を検証する。
// t.Setenvを使うため並列実行しない。
func TestLoad(t *testing.T) {
	t.Run("環境変数が未設定の場合デフォルト値が使われること", func(t *testing.T) {
		clearBFFEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.Port != "3001" {
			t.Errorf("Port = %q, want %q", cfg.Port, "3001")
		}
		if cfg.CoreURL != "http://localhost:8081" {
			t.Errorf("CoreURL = %q, want %q", cfg.CoreURL, "http://localhost:8081")
		}
		if cfg.ServiceName != "nexia-bff" {
			t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "nexia-bff")
		}
		if cfg.UpstreamTimeout != 30*time.Second {
			t.Errorf("UpstreamTimeout = %v, want 30s", cfg.UpstreamTimeout)
		}
		if cfg.ShutdownTimeout != 10*time.Second {
			t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
		}
		if !cfg.MetricsEnabled {
			t.Error("MetricsEnabledはデフォルトでtrueであるべき")
		}
		if len(cfg.FrontendOrigins) != 1 || cfg.FrontendOrigins[0] != "http://localhost:3000" {
			t.Errorf("FrontendOrigins = %v, want [http://localhost:3000]", cfg.FrontendOrigins)
		}
		if cfg.Addr() != ":3001" {
			t.Errorf("Addr() = %q, want %q", cfg.Addr(), ":3001")
		}
	})

	t.Run("環境変数で上書きできること", func(t *testing.T) {
		clearBFFEnv(t)
		t.Setenv("PORT", "4000")
		t.Setenv("NEXIA_CORE_URL", "http://core:8081/")
		t.Setenv("BFF_SERVICE_NAME", "custom-bff")
		t.Setenv("BFF_UPSTREAM_TIMEOUT", "5s")
		t.Setenv("BFF_LOG_LEVEL", "DEBUG")
		t.Setenv("BFF_FRONTEND_ORIGINS", "http://a.example, http://b.example,")
		t.Setenv("BFF_METRICS_ENABLED", "false")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.Port != "4000" {
			t.Errorf("Port = %q, want %q", cfg.Port, "4000")
		}
		// 末尾のスラッシュは除去される
		if cfg.CoreURL != "http://core:8081" {
			t.Errorf("CoreURL = %q, want %q", cfg.CoreURL, "http://core:8081")
		}
		if cfg.ServiceName != "custom-bff" {
			t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "custom-bff")
		}
		if cfg.UpstreamTimeout != 5*time.Second {
			t.Errorf("UpstreamTimeout = %v, want 5s", cfg.UpstreamTimeout)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
		}
		if cfg.MetricsEnabled {
			t.Error("MetricsEnabledがfalseに上書きされていない")
		}
		want := []string{"http://a.example", "http://b.example"}
		if len(cfg.FrontendOrigins) != len(want) {
			t.Fatalf("FrontendOrigins = %v, want %v", cfg.FrontendOrigins, want)
		}
		for i := range want {
			if cfg.FrontendOrigins[i] != want[i] {
				t.Errorf("FrontendOrigins[%d] = %q, want %q", i, cfg.FrontendOrigins[i], want[i])
			}
		}
	})

	t.Run("空白を挟んだカンマ区切りのオリジンが分割されること", func(t *testing.T) {
		clearBFFEnv(t)
		t.Setenv("BFF_FRONTEND_ORIGINS", "http://a.example ,  http://b.example")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		want := []string{"http://a.example", "http://b.example"}
		if len(cfg.FrontendOrigins) != len(want) {
			t.Fatalf("FrontendOrigins = %q, want %q", cfg.FrontendOrigins, want)
		}
		for i := range want {
			if cfg.FrontendOrigins[i] != want[i] {
				t.Errorf("FrontendOrigins[%d] = %q, want %q", i, cfg.FrontendOrigins[i], want[i])
			}
		}
	})

	t.Run("相対URLはエラーになること", func(t *testing.T) {
		clearBFFEnv(t)
		t.Setenv("NEXIA_CORE_URL", "core:8081")

		if _, err := Load(); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("数値でないポートはエラーになること", func(t *testing.T) {
		clearBFFEnv(t)
		t.Setenv("PORT", "http")

		if _, err := Load(); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestLoadDevCore はLoadDevCore関数を検証する。
func TestLoadDevCore(t *testing.T) {
	t.Run("デフォルト値で読み込めること", func(t *testing.T) {
		clearDevCoreEnv(t)

		cfg, err := LoadDevCore()
		if err != nil {
			t.Fatalf("LoadDevCore()でエラーが発生: %v", err)
		}
		if cfg.Port != "8081" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8081")
		}
		if cfg.JWTIssuer != "nexia" {
			t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "nexia")
		}
		if cfg.JWTTTL != time.Hour {
			t.Errorf("JWTTTL = %v, want 1h", cfg.JWTTTL)
		}
	})

	t.Run("短すぎる署名鍵はエラーになること", func(t *testing.T) {
		clearDevCoreEnv(t)
		t.Setenv("DEVCORE_JWT_SECRET", "short")

		if _, err := LoadDevCore(); err == nil {
			t.Fatal("LoadDevCore()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("TTLが0以下の場合はエラーになること", func(t *testing.T) {
		clearDevCoreEnv(t)
		t.Setenv("DEVCORE_JWT_TTL", "0s")

		if _, err := LoadDevCore(); err == nil {
			t.Fatal("LoadDevCore()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestCompact はcompact関数を検証する。
func TestCompact(t *testing.T) {
	t.Parallel()

	got := compact([]string{" a ", "", "  ", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("compact() = %v, want [a b]", got)
	}
}

// clearBFFEnv はテスト中のBFF関連環境変数を未設定状態にする。
func clearBFFEnv(t *testing.T) {
	t.Helper()
	for key := range bffEnv {
		unsetEnv(t, key)
	}
}

func clearDevCoreEnv(t *testing.T) {
	t.Helper()
	for key := range devCoreEnv {
		unsetEnv(t, key)
	}
}
