package services

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/dicomio"
	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/repos"
	"github.com/yungbote/dicomweb-backend/internal/search"
	"github.com/yungbote/dicomweb-backend/internal/storage"
)

// thumbnailSize is the bounding box of thumbnail renditions.
const thumbnailSize = 256

type RenderedService interface {
	// Rendered decodes the first matching instance to a JPEG. A non-nil
	// frameIndex selects the frame; the first frame otherwise.
	Rendered(ctx context.Context, studyUID, seriesUID, sopUID string, frameIndex *int) ([]byte, error)

	// Thumbnail is Rendered scaled down to fit the thumbnail bounding box.
	Thumbnail(ctx context.Context, studyUID, seriesUID, sopUID string, frameIndex *int) ([]byte, error)
}

type renderedService struct {
	db           *gorm.DB
	log          *logger.Logger
	store        *storage.Store
	dialect      search.Dialect
	instanceRepo repos.InstanceRepo
}

func NewRenderedService(
	db *gorm.DB,
	baseLog *logger.Logger,
	store *storage.Store,
	dialect search.Dialect,
	instanceRepo repos.InstanceRepo,
) RenderedService {
	serviceLog := baseLog.With("service", "RenderedService")
	return &renderedService{
		db:           db,
		log:          serviceLog,
		store:        store,
		dialect:      dialect,
		instanceRepo: instanceRepo,
	}
}

func (s *renderedService) Rendered(ctx context.Context, studyUID, seriesUID, sopUID string, frameIndex *int) ([]byte, error) {
	img, err := s.decodeFrame(ctx, studyUID, seriesUID, sopUID, frameIndex)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(img)
}

func (s *renderedService) Thumbnail(ctx context.Context, studyUID, seriesUID, sopUID string, frameIndex *int) ([]byte, error) {
	img, err := s.decodeFrame(ctx, studyUID, seriesUID, sopUID, frameIndex)
	if err != nil {
		return nil, err
	}
	return encodeJPEG(shrinkToFit(img, thumbnailSize))
}

func (s *renderedService) decodeFrame(ctx context.Context, studyUID, seriesUID, sopUID string, frameIndex *int) (image.Image, error) {
	rows, err := findInstanceRows(ctx, s.dialect, s.instanceRepo, studyUID, seriesUID, sopUID)
	if err != nil {
		return nil, err
	}

	data, err := s.store.ReadObject(rows[0].Path)
	if err != nil {
		return nil, err
	}
	ds, err := dicomio.Parse(data)
	if err != nil {
		return nil, err
	}

	index := 0
	if frameIndex != nil {
		index = *frameIndex
	}
	return dicomio.FrameImage(&ds, index)
}

// shrinkToFit scales img down to fit a size×size box, preserving aspect
// ratio. Images already inside the box pass through untouched.
func shrinkToFit(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= size && h <= size {
		return img
	}

	outW, outH := size, size
	if w > h {
		outH = h * size / w
	} else {
		outW = w * size / h
	}
	if outW < 1 {
		outW = 1
	}
	if outH < 1 {
		outH = 1
	}

	out := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.ApproxBiLinear.Scale(out, out.Bounds(), img, bounds, xdraw.Over, nil)
	return out
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
