package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testRecoveryBody はテスト用のパニック時レスポンスを返す。
func testRecoveryBody(_ any) any {
	return gin.H{"message": "bff_error", "detail": "internal_error"}
}

// TestRecovery はRecoveryミドルウェアを検証する。
func TestRecovery(t *testing.T) {
	t.Parallel()

	t.Run("パニックが発生した場合500が返ること", func(t *testing.T) {
		t.Parallel()

		var logBuf bytes.Buffer
		router := gin.New()
		router.Use(Recovery(zerolog.New(&logBuf), testRecoveryBody))
		router.GET("/panic", func(_ *gin.Context) {
			panic("テスト用パニック")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}

		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["message"] != "bff_error" {
			t.Errorf("message = %q, want %q", body["message"], "bff_error")
		}
		if !strings.Contains(logBuf.String(), "テスト用パニック") {
			t.Errorf("パニック内容がログに出力されていない: %q", logBuf.String())
		}
	})

	t.Run("パニックが発生しない場合は正常にレスポンスが返ること", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Recovery(zerolog.Nop(), testRecoveryBody))
		router.GET("/ok", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("パニックが内側のミドルウェアを巻き戻して500になること", func(t *testing.T) {
		t.Parallel()

		called := false
		router := gin.New()
		router.Use(Recovery(zerolog.Nop(), testRecoveryBody))
		router.Use(func(c *gin.Context) {
			c.Next()
			called = c.IsAborted()
		})
		router.GET("/panic", func(_ *gin.Context) {
			panic("boom")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

		if w.Code != http.StatusInternalServerError {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		if called {
			t.Error("パニック後に後続ミドルウェアの後処理が実行された")
		}
	})
}
