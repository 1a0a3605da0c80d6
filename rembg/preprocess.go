package rembg

import (
	"context"
	"errors"
	"image"
	"log/slog"

	"github.com/chaos-io/bgeraser/config"
	"github.com/chaos-io/bgeraser/imaging"
)

// Preprocessor wraps a Remover with the image work done around inference:
//
//	已有透明通道的图片直接跳过推理
//	推理前缩放（最长边 <= MaxSize）
//	推理后按 alpha bounding box 裁剪主体
type Preprocessor struct {
	next Remover
	opts config.PreprocessConfig
}

func NewPreprocessor(next Remover, opts config.PreprocessConfig) *Preprocessor {
	return &Preprocessor{next: next, opts: opts}
}

func (p *Preprocessor) active() bool {
	return p.opts.MaxSize > 0 || p.opts.SkipTransparent || p.opts.Trim
}

func (p *Preprocessor) Remove(ctx context.Context, data []byte) ([]byte, error) {
	if !p.active() {
		return p.next.Remove(ctx, data)
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}

	var out image.Image
	if p.opts.SkipTransparent && imaging.HasTransparency(img) {
		slog.Debug("input already has transparency, skipping inference")
		out = img
	} else {
		in := data
		if resized := imaging.ResizeWithinMax(img, p.opts.MaxSize); resized != img {
			if in, err = imaging.EncodePNG(resized); err != nil {
				return nil, err
			}
		}

		res, err := p.next.Remove(ctx, in)
		if err != nil {
			return nil, err
		}
		if !p.opts.Trim {
			return res, nil
		}
		if out, _, err = imaging.Decode(res); err != nil {
			return nil, err
		}
	}

	if p.opts.Trim {
		out = p.trim(out)
	}
	return imaging.EncodePNG(out)
}

func (p *Preprocessor) trim(img image.Image) image.Image {
	nrgba := imaging.ToNRGBA(img)
	bbox, err := imaging.AlphaBBox(nrgba, p.opts.TrimThreshold)
	if err != nil {
		if errors.Is(err, imaging.ErrNoForeground) {
			slog.Warn("no foreground found, output left untrimmed")
		}
		return img
	}
	if p.opts.Square {
		return imaging.CropSquare(nrgba, bbox, p.opts.Padding)
	}
	return imaging.Crop(nrgba, bbox, p.opts.Padding)
}
