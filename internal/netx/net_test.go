package netx

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipartBody(t *testing.T) {
	body, ct, err := MultipartBody([]Part{
		{Field: "files[]", FileName: "a.png", Data: []byte("aaa")},
		{Field: "files[]", FileName: "b.png", Data: []byte("bb")},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ct, "multipart/form-data; boundary="))

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ct)
	require.NoError(t, req.ParseMultipartForm(1<<20))

	files := req.MultipartForm.File["files[]"]
	require.Len(t, files, 2)
	assert.Equal(t, "a.png", files[0].Filename)

	f, err := files[1].Open()
	require.NoError(t, err)
	defer f.Close()
	data, _ := io.ReadAll(f)
	assert.Equal(t, "bb", string(data))
}

func TestDoJSON(t *testing.T) {
	type payload struct {
		Value string `json:"value"`
	}

	t.Run("success decodes body", func(t *testing.T) {
		var gotMethod string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			_, _ = io.WriteString(w, `{"value":"ok"}`)
		}))
		defer ts.Close()

		req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
		require.NoError(t, err)

		var out payload
		require.NoError(t, DoJSON(context.Background(), ts.Client(), req, &out))
		assert.Equal(t, http.MethodGet, gotMethod)
		assert.Equal(t, "ok", out.Value)
	})

	t.Run("error status still decodes", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"value":"partial"}`)
		}))
		defer ts.Close()

		req, err := http.NewRequest(http.MethodPost, ts.URL, nil)
		require.NoError(t, err)

		var out payload
		err = DoJSON(context.Background(), ts.Client(), req, &out)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusUnprocessableEntity, se.Code)
		assert.Contains(t, se.Error(), "partial")
		assert.Equal(t, "partial", out.Value)
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `not json`)
		}))
		defer ts.Close()

		req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
		require.NoError(t, err)

		var out payload
		err = DoJSON(context.Background(), ts.Client(), req, &out)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decode response")
	})

	t.Run("transport error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		url := ts.URL
		ts.Close()

		req, err := http.NewRequest(http.MethodGet, url, nil)
		require.NoError(t, err)
		require.Error(t, DoJSON(context.Background(), http.DefaultClient, req, nil))
	})
}
