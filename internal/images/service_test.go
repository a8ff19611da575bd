package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakePutter() *fakePutter {
	return &fakePutter{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakePutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	f.types[*params.Key] = *params.ContentType
	return &s3.PutObjectOutput{}, nil
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadStoresOriginalAndVariants(t *testing.T) {
	putter := newFakePutter()
	svc := NewServiceWithClient(putter, "portal-images", "cdn.example.com")

	data := pngBytes(t, 400, 200)
	hosted, err := svc.Upload(context.Background(), "org-1", "banner.png", "image/png", bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "org-1", hosted.OrgID)
	assert.Equal(t, "banner.png", hosted.OriginalFilename)
	assert.Equal(t, 400, hosted.Width)
	assert.Equal(t, 200, hosted.Height)
	assert.Equal(t, int64(len(data)), hosted.Size)

	// One original plus three variants.
	require.Len(t, putter.objects, 4)
	var originalKey, thumbKey string
	for key := range putter.objects {
		switch {
		case strings.HasSuffix(key, ".png"):
			originalKey = key
		case strings.HasSuffix(key, "_thumb.jpg"):
			thumbKey = key
		}
	}
	require.NotEmpty(t, originalKey)
	require.NotEmpty(t, thumbKey)
	assert.True(t, strings.HasPrefix(originalKey, "images/org-1/"))
	assert.Equal(t, "image/png", putter.types[originalKey])
	assert.Equal(t, "image/jpeg", putter.types[thumbKey])

	assert.Equal(t, "https://cdn.example.com/"+originalKey, hosted.CDNURL)
	assert.Equal(t, "https://cdn.example.com/"+thumbKey, hosted.CDNURLThumbnail)
	assert.NotEmpty(t, hosted.CDNURLMedium)
	assert.NotEmpty(t, hosted.CDNURLLarge)
}

func TestUploadVariantsPreserveAspectRatio(t *testing.T) {
	putter := newFakePutter()
	svc := NewServiceWithClient(putter, "portal-images", "")

	_, err := svc.Upload(context.Background(), "org-1", "wide.png", "image/png",
		bytes.NewReader(pngBytes(t, 600, 300)))
	require.NoError(t, err)

	for key, data := range putter.objects {
		if !strings.HasSuffix(key, "_thumb.jpg") {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, ThumbnailWidth, img.Bounds().Dx())
		assert.Equal(t, ThumbnailWidth/2, img.Bounds().Dy())
	}
}

func TestUploadDoesNotUpscaleSmallImages(t *testing.T) {
	putter := newFakePutter()
	svc := NewServiceWithClient(putter, "portal-images", "")

	_, err := svc.Upload(context.Background(), "org-1", "small.png", "image/png",
		bytes.NewReader(pngBytes(t, 100, 80)))
	require.NoError(t, err)

	for key, data := range putter.objects {
		if !strings.HasSuffix(key, "_large.jpg") {
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 100, img.Bounds().Dx(), "variant keeps original size when already narrower")
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	svc := NewServiceWithClient(newFakePutter(), "portal-images", "")
	_, err := svc.Upload(context.Background(), "org-1", "doc.pdf", "application/pdf",
		bytes.NewReader([]byte("%PDF-")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported image type")
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	svc := NewServiceWithClient(newFakePutter(), "portal-images", "")
	big := bytes.NewReader(make([]byte, MaxFileSizeMB*1024*1024+1))
	_, err := svc.Upload(context.Background(), "org-1", "big.png", "image/png", big)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestUploadRejectsCorruptImage(t *testing.T) {
	svc := NewServiceWithClient(newFakePutter(), "portal-images", "")
	_, err := svc.Upload(context.Background(), "org-1", "broken.png", "image/png",
		bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestCDNURLFallsBackToBucketHost(t *testing.T) {
	svc := NewServiceWithClient(newFakePutter(), "portal-images", "")
	assert.Equal(t, "https://portal-images.s3.amazonaws.com/images/o/x.png", svc.cdnURL("images/o/x.png"))

	svc = NewServiceWithClient(newFakePutter(), "portal-images", "cdn.example.com")
	assert.Equal(t, "https://cdn.example.com/images/o/x.png", svc.cdnURL("images/o/x.png"))
}

func TestResizeToWidth(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 500))

	resized := resizeToWidth(src, 200)
	assert.Equal(t, 200, resized.Bounds().Dx())
	assert.Equal(t, 100, resized.Bounds().Dy())

	same := resizeToWidth(src, 2000)
	assert.Equal(t, 1000, same.Bounds().Dx())
}
