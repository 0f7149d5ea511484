// BFFサービスのエントリポイント。
// フロントエンド向けの /bff エンドポイントを公開し、コアサービスへ転送する。
// 状態は持たず、設定は起動時に環境変数から一度だけ読み込む。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/nexia-bff/internal/bff"
	"github.com/nao1215/nexia-bff/pkg/config"
	"github.com/nao1215/nexia-bff/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ロガーの初期化に失敗: %v\n", err)
		os.Exit(1)
	}

	server := bff.NewServer(cfg, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr()).
			Str("core_url", cfg.CoreURL).
			Msg("BFFサービスを起動します")
		errCh <- server.Run()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("BFFサービスの起動に失敗")
		}
		return
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("BFFサービスを停止します")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("グレースフルシャットダウンに失敗")
		return
	}
	logger.Info().Msg("BFFサービスを停止しました")
}
