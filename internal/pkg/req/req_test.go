package req

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"relaychat/internal/pkg/errs"
)

type announceBody struct {
	Text string `json:"text" validate:"required,max=10"`
}

func bind(contentType, body string) *errs.CustomError {
	r := httptest.NewRequest(http.MethodPost, "/api/announce", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}

	var dst announceBody
	return BindJSON(httptest.NewRecorder(), r, &dst)
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantCode    int
	}{
		{"valid", "application/json; charset=utf-8", `{"text":"hello"}`, 0},
		{"wrong media type", "text/plain", `{"text":"hello"}`, errs.ErrUnsupportedMediaType},
		{"malformed", "application/json", `{"text":`, errs.ErrInvalidJSONFormat},
		{"unknown field", "application/json", `{"text":"a","extra":1}`, errs.ErrInvalidJSONFormat},
		{"trailing content", "application/json", `{"text":"a"} {}`, errs.ErrExtraContentInBody},
		{"fails validation", "application/json", `{"text":""}`, errs.ErrInvalidParams},
		{"too long for tag", "application/json", `{"text":"01234567890"}`, errs.ErrInvalidParams},
		{"oversized", "application/json", `{"text":"` + strings.Repeat("a", int(MaxBodyBytes)) + `"}`, errs.ErrRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bind(tt.contentType, tt.body)
			if tt.wantCode == 0 {
				require.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			require.Equal(t, tt.wantCode, err.Code)
		})
	}
}
