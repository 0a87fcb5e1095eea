package svdimage

import (
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"
)

// AddFile decodes the JPEG or PNG at path and registers it under name
// as a color image.
func (c *Compressor) AddFile(name, path string) error {
	img, err := decodeFile(path)
	if err != nil {
		return err
	}
	c.Add(name, img)
	return nil
}

// AddGrayFile decodes the JPEG or PNG at path and registers it under
// name as a single luminance plane.
func (c *Compressor) AddGrayFile(name, path string) error {
	img, err := decodeFile(path)
	if err != nil {
		return err
	}
	c.AddGray(name, img)
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}
