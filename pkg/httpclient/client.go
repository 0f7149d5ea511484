package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrMalformedBody は上流のレスポンスボディがJSONとして解釈できないことを表す。
var ErrMalformedBody = errors.New("上流のレスポンスボディが不正なJSONです")

// defaultTimeout はWithTimeoutを指定しない場合のタイムアウト。
const defaultTimeout = 30 * time.Second

// Response は上流サービスの応答。ボディは読み取り済みのバイト列で保持する。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はレスポンスボディ。空またはJSON。
	Body []byte
}

// ContentType はレスポンスのContent-Typeを返す。未設定の場合はJSONとみなす。
func (r *Response) ContentType() string {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/json"
}

// StatusError は上流サービスが非2xxのステータスを返したことを表す。
type StatusError struct {
	// Method は呼び出したHTTPメソッド。
	Method string
	// Path は呼び出したパス。
	Path string
	// Response は上流の応答そのもの。
	Response *Response
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: %s %s status=%d, body=%s", e.Method, e.Path, e.Response.StatusCode, string(e.Response.Body))
}

// Call は1回の上流呼び出しの結果。Observerに渡される。
type Call struct {
	Method     string
	Path       string
	StatusCode int // 通信失敗時は0
	Duration   time.Duration
	Err        error
}

// Observer は上流呼び出しの完了ごとに呼ばれるフック。
type Observer func(Call)

// Option はClientの設定を変更する。
type Option func(*Client)

// WithTimeout は1回の呼び出しのタイムアウトを設定する。0は無制限。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTransport は使用するRoundTripperを差し替える。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithObserver は呼び出し完了時のフックを設定する。
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// Client はコアサービス呼び出し用のHTTPクライアント。
// 内部のTransportは接続を再利用するため、複数のゴルーチンから安全に共有できる。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。
	baseURL string
	// observer は呼び出し完了時のフック。nilの場合は何もしない。
	observer Observer
}

// New は新しいHTTPクライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://nexia-core:8081"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: newTransport(),
		},
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// newTransport はコネクションプールを持つTransportを生成する。
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON は指定パスにJSONボディをそのままPOSTする。
func (c *Client) PostJSON(ctx context.Context, path string, body []byte) (*Response, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return c.do(ctx, http.MethodPost, path, header, body)
}

// Get は指定パスにGETリクエストを送信する。headerは上流にそのまま付与される。
func (c *Client) Get(ctx context.Context, path string, header http.Header) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, header, nil)
}

// do はHTTPリクエストを実行する共通処理。
func (c *Client) do(ctx context.Context, method, path string, header http.Header, body []byte) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		if c.observer == nil {
			return
		}
		call := Call{Method: method, Path: path, Duration: time.Since(start), Err: err}
		if resp != nil {
			call.StatusCode = resp.StatusCode
		}
		var se *StatusError
		if errors.As(err, &se) {
			call.StatusCode = se.Response.StatusCode
		}
		c.observer(call)
	}()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}

	if len(bytes.TrimSpace(respBody)) > 0 && !json.Valid(respBody) {
		return nil, fmt.Errorf("%s %s status=%d: %w", method, path, httpResp.StatusCode, ErrMalformedBody)
	}

	out := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &StatusError{Method: method, Path: path, Response: out}
	}
	return out, nil
}
