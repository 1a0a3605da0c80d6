package rembg

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/chaos-io/bgeraser/config"
	nhttp "github.com/chaos-io/bgeraser/util/http"
)

const removePath = "/api/remove"

// ServerRemBG calls a rembg HTTP server.
type ServerRemBG struct {
	cfg config.RembgConfig
	cli nhttp.IClient
}

func NewServerRemBG(cfg config.RembgConfig) *ServerRemBG {
	return &ServerRemBG{
		cfg: cfg,
		cli: nhttp.NewHTTPClientWithTimeout(cfg.Timeout),
	}
}

/*
	curl -X POST "$BASE_URL/api/remove" \
	  -F "file=@my_image.png" \
	  -F "model=u2net" \
	  -o my_image_without-bg.png
*/
func (s *ServerRemBG) Remove(ctx context.Context, data []byte) ([]byte, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image"+extensionFor(data))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if s.cfg.Model != "" {
		_ = writer.WriteField("model", s.cfg.Model)
	}
	if s.cfg.AlphaMatting {
		_ = writer.WriteField("a", strconv.FormatBool(true))
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	var out []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: strings.TrimRight(s.cfg.URL, "/") + removePath,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &out,
	}
	if err := s.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("rembg server: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("rembg server returned an empty image")
	}

	return out, nil
}

// extensionFor guesses a file extension so servers that look at the upload name are satisfied.
func extensionFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	default:
		return ".png"
	}
}
