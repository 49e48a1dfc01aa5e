package resource

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Texture is a decoded image in non-premultiplied RGBA.
type Texture struct {
	Width, Height int
	Format        string // decoder name, e.g. "png"
	Image         *image.NRGBA
}

// Release drops the pixel data.
func (t *Texture) Release() {
	t.Image = nil
}

// TextureLoader decodes PNG, JPEG, GIF, BMP, TIFF and WebP images.
type TextureLoader struct{}

// Extensions implements Loader.
func (TextureLoader) Extensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}
}

// Load implements Loader.
func (TextureLoader) Load(ctx *LoadContext, data []byte) (Kind, any, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return KindUnknown, nil, loadError(ctx.Path, ErrMalformed, "decode image", err)
	}
	b := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}
	return KindTexture, &Texture{
		Width:  b.Dx(),
		Height: b.Dy(),
		Format: format,
		Image:  nrgba,
	}, nil
}
