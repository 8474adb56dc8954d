package storage

import (
	"image"
	"image/jpeg"
	_ "image/png" // registers the PNG decoder used by image.Decode
	"os"

	"golang.org/x/image/draw"

	"github.com/visionforge/core/pkg/corerr"
)

const thumbnailJPEGQuality = 85

// boxFit returns the largest (w,h) that fits inside maxSide×maxSide while
// preserving srcW/srcH's aspect ratio, never upscaling beyond the source.
func boxFit(srcW, srcH, maxSide int) (int, int) {
	if srcW <= maxSide && srcH <= maxSide {
		return srcW, srcH
	}
	ratio := float64(srcW) / float64(srcH)
	if ratio > 1 {
		return maxSide, int(float64(maxSide) / ratio)
	}
	return int(float64(maxSide) * ratio), maxSide
}

// WriteThumbnail reads the image at originalPath, produces a
// box-constrained 256×256 scaled copy preserving aspect ratio, and writes
// it as JPEG to thumbPath (spec §6.5).
func WriteThumbnail(originalPath, thumbPath string) error {
	src, err := os.Open(originalPath)
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to open original image", err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to decode original image", err)
	}

	bounds := img.Bounds()
	dstW, dstH := boxFit(bounds.Dx(), bounds.Dy(), ThumbnailSize)
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	out, err := os.Create(thumbPath)
	if err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to create thumbnail file", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, dst, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to encode thumbnail", err)
	}
	return nil
}

// SaveImage writes the original image bytes and its thumbnail under the
// layout's directories, creating them if absent (spec §6.5
// save_image_from_bytes).
func SaveImage(l *Layout, filename string, data []byte) error {
	if err := l.EnsureDirs(); err != nil {
		return err
	}

	origPath := l.OriginalPath(filename)
	if err := os.WriteFile(origPath, data, 0o644); err != nil {
		return corerr.Wrap(corerr.KindIO, "failed to write original image", err)
	}

	return WriteThumbnail(origPath, l.ThumbnailPath(filename))
}

// DeleteImage removes both the original and thumbnail files for filename,
// tolerating either being already absent.
func DeleteImage(l *Layout, filename string) error {
	if err := removeIfExists(l.OriginalPath(filename)); err != nil {
		return err
	}
	return removeIfExists(l.ThumbnailPath(filename))
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return corerr.Wrap(corerr.KindIO, "failed to delete file", err)
	}
	return nil
}
