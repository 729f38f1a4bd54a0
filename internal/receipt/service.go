package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/ticket-ocr/internal/scanning"
)

// IDGenerator generates unique IDs for stored images
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// ImageSink accepts receipt images for background persistence
type ImageSink interface {
	Enqueue(filename, base64Image string)
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service runs the OCR pipeline for one receipt
type Service struct {
	scanner     scanning.Scanner
	images      ImageSink
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(scanner scanning.Scanner, images ImageSink) *Service {
	return &Service{
		scanner:     scanner,
		images:      images,
		idGenerator: &uuidGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(scanner scanning.Scanner, images ImageSink, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		scanner:     scanner,
		images:      images,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// imageFilename builds a unique bucket filename: <id>_<unix millis>.jpg
func (s *Service) imageFilename() string {
	return fmt.Sprintf("%s_%d.jpg", s.idGenerator.Generate(), s.timeSource.Now().UnixMilli())
}

// ExtractArticles sends the receipt to the scanner and, when it could be
// read, hands the image to the background writer. Failures are returned as
// *Error.
func (s *Service) ExtractArticles(ctx context.Context, base64Image string) (*scanning.Result, error) {
	if strings.TrimSpace(base64Image) == "" {
		return nil, &Error{Kind: KindMissingInput, Status: http.StatusBadRequest, Message: msgMissingImage}
	}

	start := time.Now()
	result, err := s.scanner.ScanReceipt(ctx, base64Image)
	if err != nil {
		scanErr := classifyScanError(err)
		scanDurationSeconds.WithLabelValues(scanErr.Kind.String()).Observe(time.Since(start).Seconds())
		if scanErr.Kind == KindUpstreamUnreadable {
			slog.Info("Receipt could not be read by the model", "image_size", len(base64Image))
		} else {
			slog.Error("Failed to scan receipt", "kind", scanErr.Kind.String(), "image_size", len(base64Image), "error", err)
		}
		return nil, scanErr
	}
	scanDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	filename := s.imageFilename()
	s.images.Enqueue(filename, base64Image)
	slog.Debug("Receipt scanned", "articles", len(result.Articles), "filename", filename)

	return result, nil
}
