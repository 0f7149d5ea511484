package bff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/nexia-bff/pkg/httpclient"
	"github.com/nao1215/nexia-bff/pkg/middleware"
)

// レスポンスの message に入れる機械可読なタグ。
const (
	messageBFFError             = "bff_error"
	messageMissingAuthorization = "missing_authorization"
	messageNotFound             = "not_found"
)

// defaultTokenType はログイン応答に tokenType が無い場合に補うトークン種別。
const defaultTokenType = "Bearer"

// detailMissingToken はログイン応答からトークンを取り出せなかった場合の詳細メッセージ。
const detailMissingToken = "Core login response did not include accessToken"

// errorEnvelope はBFF自身が生成するエラーレスポンス。
type errorEnvelope struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// composeErrorEnvelope は合成エンドポイントでトークンが取得できなかった場合のレスポンス。
// 調査用にログイン応答をそのまま添付する。
type composeErrorEnvelope struct {
	Message       string          `json:"message"`
	Detail        string          `json:"detail"`
	LoginResponse json.RawMessage `json:"loginResponse"`
}

// loginAndMeResponse はログインと現在ユーザー取得を合成したレスポンス。
type loginAndMeResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	// ExpiresInSeconds はログイン応答の値をそのまま写す。無ければ省略する。
	ExpiresInSeconds json.RawMessage `json:"expiresInSeconds,omitempty"`
	// Me は現在ユーザーの応答ボディ。
	Me json.RawMessage `json:"me"`
}

// handlePassthroughPost は受信したJSONボディをコアサービスの path にそのままPOSTするハンドラを返す。
func (s *Server) handlePassthroughPost(path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c)
		if err != nil {
			s.relayError(c, err)
			return
		}

		resp, err := s.core.PostJSON(c.Request.Context(), path, body)
		if err != nil {
			s.relayError(c, err)
			return
		}
		writeUpstream(c, resp)
	}
}

// handleLoginAndMe はログイン後にそのトークンで現在ユーザーを取得し、
// 両方の結果を1つにまとめて返すハンドラを返す。2回の呼び出しは逐次に行う。
func (s *Server) handleLoginAndMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c)
		if err != nil {
			s.relayError(c, err)
			return
		}

		// 1) ログイン
		loginResp, err := s.core.PostJSON(c.Request.Context(), corePathLogin, body)
		if err != nil {
			s.relayError(c, err)
			return
		}

		fields := decodeObject(loginResp.Body)
		token, ok := firstString(fields, "accessToken", "token")
		if !ok {
			s.logger.Warn().
				Str("request_id", middleware.GetRequestID(c)).
				Int("login_status", loginResp.StatusCode).
				Msg("ログイン応答にトークンが含まれていません")
			c.JSON(http.StatusBadGateway, composeErrorEnvelope{
				Message:       messageBFFError,
				Detail:        detailMissingToken,
				LoginResponse: rawOrNull(loginResp.Body),
			})
			return
		}

		// 2) 現在ユーザーの取得
		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)
		meResp, err := s.core.Get(c.Request.Context(), corePathMe, header)
		if err != nil {
			s.relayError(c, err)
			return
		}

		// 3) 結果の合成
		tokenType, ok := firstString(fields, "tokenType")
		if !ok {
			tokenType = defaultTokenType
		}
		c.JSON(http.StatusOK, loginAndMeResponse{
			AccessToken:      token,
			TokenType:        tokenType,
			ExpiresInSeconds: fields["expiresInSeconds"],
			Me:               rawOrNull(meResp.Body),
		})
	}
}

// handleCurrentUser はAuthorizationヘッダーをそのまま転送して現在ユーザーを取得するハンドラを返す。
// ヘッダーが無い、または空白のみの場合はコアサービスに問い合わせずに401を返す。
func (s *Server) handleCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if strings.TrimSpace(auth) == "" {
			c.JSON(http.StatusUnauthorized, errorEnvelope{Message: messageMissingAuthorization})
			return
		}

		header := http.Header{}
		header.Set("Authorization", auth)
		resp, err := s.core.Get(c.Request.Context(), corePathMe, header)
		if err != nil {
			s.relayError(c, err)
			return
		}
		writeUpstream(c, resp)
	}
}

// relayError はコアサービス呼び出しの失敗をレスポンスに変換する。
// コアサービスがステータスとボディを返していればそのまま中継し、
// 通信失敗や不正な応答の場合は500と汎用エラーを返す。
func (s *Server) relayError(c *gin.Context, err error) {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		writeUpstream(c, se.Response)
		return
	}

	_ = c.Error(err)
	s.logger.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(c)).
		Str("path", c.Request.URL.Path).
		Msg("コアサービスとの通信に失敗しました")
	c.JSON(http.StatusInternalServerError, errorEnvelope{
		Message: messageBFFError,
		Detail:  err.Error(),
	})
}

// writeUpstream はコアサービスの応答をステータスとボディを変えずに書き出す。
func writeUpstream(c *gin.Context, resp *httpclient.Response) {
	if len(resp.Body) == 0 {
		c.Status(resp.StatusCode)
		return
	}
	c.Data(resp.StatusCode, resp.ContentType(), resp.Body)
}

// readBody は受信ボディを読み取る。空のボディは空オブジェクトとして扱う。
func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの読み取りに失敗: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return []byte("{}"), nil
	}
	return body, nil
}

// decodeObject はJSONオブジェクトをフィールドごとに分解する。
// オブジェクトでない場合は空のマップを返す。
func decodeObject(body []byte) map[string]json.RawMessage {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return map[string]json.RawMessage{}
	}
	return fields
}

// firstString はkeysの順に、空でない文字列値を持つ最初のフィールドを返す。
func firstString(fields map[string]json.RawMessage, keys ...string) (string, bool) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err == nil && v != "" {
			return v, true
		}
	}
	return "", false
}

// rawOrNull は空のボディをJSONのnullに置き換える。
func rawOrNull(body []byte) json.RawMessage {
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(body)
}
