package port

import "image"

type ImageCodec interface {
	Load(path string) (image.Image, error)
	Save(img image.Image, path string) error
}
