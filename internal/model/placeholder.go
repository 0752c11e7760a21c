package model

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
)

// PlaceholderImage 图片生成失败时使用的固定 16:9 占位图
var PlaceholderImage = buildPlaceholder()

func buildPlaceholder() string {
	const w, h = 64, 36
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bg := color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
	fg := color.RGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := bg
			// 中间一道横条，便于和真实图片区分
			if y >= h/2-2 && y < h/2+2 && x >= w/4 && x < w*3/4 {
				c = fg
			}
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
