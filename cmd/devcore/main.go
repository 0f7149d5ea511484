// 開発用コアサービスのエントリポイント。
// BFFが依存する登録・ログイン・現在ユーザーのAPIをSQLiteで提供する。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/nexia-bff/internal/devcore"
	"github.com/nao1215/nexia-bff/pkg/config"
	"github.com/nao1215/nexia-bff/pkg/logging"
)

func main() {
	cfg, err := config.LoadDevCore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定の読み込みに失敗: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat, "nexia-devcore")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ロガーの初期化に失敗: %v\n", err)
		os.Exit(1)
	}

	server, err := devcore.NewServer(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("コアサービスの初期化に失敗")
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Msg("開発用コアサービスを起動します")
		errCh <- server.Run()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("コアサービスの起動に失敗")
		}
		return
	case <-stop:
		logger.Info().Msg("開発用コアサービスを停止します")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("グレースフルシャットダウンに失敗")
	}
}
