// Package config はBFFと開発用コアサービスの起動設定を読み込む。
//
// 設定はデフォルト値、環境変数の順にkoanfへ積み重ねて解決する。
// 読み込んだ設定は起動時に一度だけ生成し、以後は値として各コンポーネントに渡す。
package config
