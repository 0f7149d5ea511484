package devcore

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// problemBaseURI はproblem typeのURI接頭辞。
const problemBaseURI = "https://nexia.dev/problems/"

// problem はRFC 9457形式のエラーレスポンス。
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// writeProblem はapplication/problem+jsonでエラーを返す。
// kindが空の場合はtypeを about:blank とする。
func writeProblem(c *gin.Context, status int, kind, detail string) {
	p := newProblem(status, kind, detail)
	body, err := json.Marshal(p)
	if err != nil {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/problem+json", body)
}

func newProblem(status int, kind, detail string) problem {
	typ := "about:blank"
	if kind != "" {
		typ = problemBaseURI + kind
	}
	return problem{
		Type:   typ,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}
