package rembg

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/bgeraser/config"
	nhttp "github.com/chaos-io/bgeraser/util/http"
)

const (
	BiRefNetModel = "BiRefNet"

	uploadPath  = "/api/upload/image"
	promptPath  = "/api/prompt"
	historyPath = "/api/history/"
	viewPath    = "/api/view"
)

//go:embed workflow.json
var workflowData []byte

// BiRefNetRemBG runs the BiRefNet workflow on a ComfyUI server:
// upload the image, queue the prompt, poll the history, download the output.
type BiRefNetRemBG struct {
	cfg      config.ComfyUIConfig
	baseURL  string
	workflow map[string]any
	clientID string
	cli      nhttp.IClient
}

// NewBiRefNetRemBG parses workflow (API format). nil selects the embedded BiRefNet workflow.
func NewBiRefNetRemBG(cfg config.ComfyUIConfig, workflow []byte) (*BiRefNetRemBG, error) {
	if workflow == nil {
		workflow = workflowData
	}

	wk := map[string]any{}
	if err := json.Unmarshal(workflow, &wk); err != nil {
		return nil, fmt.Errorf("unmarshal workflow data: %w", err)
	}
	if _, err := nodeInputs(wk, cfg.LoadNode); err != nil {
		return nil, err
	}
	if _, ok := wk[cfg.SaveNode]; !ok {
		return nil, fmt.Errorf("workflow has no save node %q", cfg.SaveNode)
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	return &BiRefNetRemBG{
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		workflow: wk,
		clientID: ksuid.New().String(),
		cli:      nhttp.NewHTTPClient(),
	}, nil
}

func (b *BiRefNetRemBG) Remove(ctx context.Context, data []byte) ([]byte, error) {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	uploaded, err := b.uploadImage(ctx, data)
	if err != nil {
		return nil, err
	}

	promptID, err := b.prompt(ctx, uploaded)
	if err != nil {
		return nil, err
	}

	output, err := b.waitOutput(ctx, promptID)
	if err != nil {
		return nil, err
	}

	return b.view(ctx, output)
}

type uploadImageResp struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

/*
	curl -X POST "$BASE_URL/api/upload/image" \
	  -F "image=@my_image.png" \
	  -F "type=input" \
	  -F "overwrite=true"

{"name": "my_image1.png", "subfolder": "", "type": "input"}%
*/
func (b *BiRefNetRemBG) uploadImage(ctx context.Context, data []byte) (*uploadImageResp, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	name := "bgeraser_" + ksuid.New().String() + extensionFor(data)
	part, err := writer.CreateFormFile("image", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}

	_ = writer.WriteField("type", "input")
	_ = writer.WriteField("overwrite", "true")
	_ = writer.Close()

	resp := &uploadImageResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + uploadPath,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   resp,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	if resp.Name == "" {
		return nil, errors.New("upload image: empty name in response")
	}

	slog.Debug("uploaded image to comfyui", "name", resp.Name, "subfolder", resp.Subfolder)
	return resp, nil
}

type promptResp struct {
	PromptID   string         `json:"prompt_id"`
	Number     int            `json:"number"`
	NodeErrors map[string]any `json:"node_errors"`
}

/*
	curl -X POST "$BASE_URL/api/prompt" \
	  -H "Content-Type: application/json" \
	  -d '{"prompt": '"$(cat workflow.json)"'}'
*/
func (b *BiRefNetRemBG) prompt(ctx context.Context, uploaded *uploadImageResp) (string, error) {
	image := uploaded.Name
	if uploaded.Subfolder != "" {
		image = uploaded.Subfolder + "/" + uploaded.Name
	}

	wk, err := b.workflowFor(image)
	if err != nil {
		return "", err
	}

	resp := &promptResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + promptPath,
		Method:     http.MethodPost,
		Body:       map[string]any{"prompt": wk, "client_id": b.clientID},
		Response:   resp,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return "", fmt.Errorf("queue prompt: %w", err)
	}
	if len(resp.NodeErrors) > 0 {
		return "", fmt.Errorf("queue prompt: node errors %v", resp.NodeErrors)
	}
	if resp.PromptID == "" {
		return "", errors.New("queue prompt: empty prompt id")
	}

	slog.Debug("queued comfyui prompt", "prompt_id", resp.PromptID, "number", resp.Number)
	return resp.PromptID, nil
}

// workflowFor returns a copy of the workflow whose load node reads image.
func (b *BiRefNetRemBG) workflowFor(image string) (map[string]any, error) {
	raw, err := json.Marshal(b.workflow)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow data: %w", err)
	}
	wk := map[string]any{}
	if err := json.Unmarshal(raw, &wk); err != nil {
		return nil, fmt.Errorf("unmarshal workflow data: %w", err)
	}

	inputs, err := nodeInputs(wk, b.cfg.LoadNode)
	if err != nil {
		return nil, err
	}
	inputs["image"] = image
	return wk, nil
}

func nodeInputs(wk map[string]any, id string) (map[string]any, error) {
	node, ok := wk[id].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("workflow has no node %q", id)
	}
	inputs, ok := node["inputs"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("workflow node %q has no inputs", id)
	}
	return inputs, nil
}

type outputImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type historyEntry struct {
	Status struct {
		StatusStr string `json:"status_str"`
		Completed bool   `json:"completed"`
	} `json:"status"`
	Outputs map[string]struct {
		Images []outputImage `json:"images"`
	} `json:"outputs"`
}

// waitOutput polls the history until the prompt finished.
func (b *BiRefNetRemBG) waitOutput(ctx context.Context, promptID string) (*outputImage, error) {
	ticker := time.NewTicker(b.cfg.PollInterval)
	defer ticker.Stop()

	for {
		history := map[string]historyEntry{}
		reqParam := &nhttp.RequestParam{
			RequestURI: b.baseURL + historyPath + url.PathEscape(promptID),
			Method:     http.MethodGet,
			Response:   &history,
		}
		if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
			return nil, fmt.Errorf("get history: %w", err)
		}

		if entry, ok := history[promptID]; ok {
			if entry.Status.StatusStr == "error" {
				return nil, fmt.Errorf("prompt %s failed", promptID)
			}
			if entry.Status.Completed {
				return b.pickOutput(promptID, entry)
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for prompt %s: %w", promptID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (b *BiRefNetRemBG) pickOutput(promptID string, entry historyEntry) (*outputImage, error) {
	if out, ok := entry.Outputs[b.cfg.SaveNode]; ok && len(out.Images) > 0 {
		return &out.Images[0], nil
	}
	for _, out := range entry.Outputs {
		if len(out.Images) > 0 {
			return &out.Images[0], nil
		}
	}
	return nil, fmt.Errorf("prompt %s produced no image", promptID)
}

func (b *BiRefNetRemBG) view(ctx context.Context, img *outputImage) ([]byte, error) {
	q := url.Values{}
	q.Set("filename", img.Filename)
	q.Set("subfolder", img.Subfolder)
	q.Set("type", img.Type)

	var out []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + viewPath + "?" + q.Encode(),
		Method:     http.MethodGet,
		Response:   &out,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("download output: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("download output: empty image %s", img.Filename)
	}
	return out, nil
}
