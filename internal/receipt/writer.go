package receipt

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zombor/ticket-ocr/internal/scanning"
)

// imageJob is a receipt image waiting to be written to the bucket
type imageJob struct {
	filename    string
	base64Image string
}

// ImageWriter persists receipt images in the background. Requests never wait
// on it: the response and the file write race, and write failures only show
// up in the logs and metrics.
type ImageWriter struct {
	storage Storage
	jobs    chan imageJob

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewImageWriter starts workers goroutines draining a queue of queueSize jobs
func NewImageWriter(storage Storage, workers, queueSize int) *ImageWriter {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	w := &ImageWriter{
		storage: storage,
		jobs:    make(chan imageJob, queueSize),
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for job := range w.jobs {
				w.write(job)
			}
		}()
	}
	return w
}

// Enqueue schedules an image write without blocking. When the queue is full
// the write runs on its own goroutine instead of being dropped.
func (w *ImageWriter) Enqueue(filename, base64Image string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		slog.Error("Image writer is closed, receipt image not saved", "filename", filename)
		imageWritesTotal.WithLabelValues("dropped").Inc()
		return
	}

	job := imageJob{filename: filename, base64Image: base64Image}
	select {
	case w.jobs <- job:
	default:
		writerOverflowTotal.Inc()
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.write(job)
		}()
	}
}

func (w *ImageWriter) write(job imageJob) {
	data, err := scanning.DecodeImage(job.base64Image)
	if err != nil {
		slog.Error("Failed to decode receipt image", "filename", job.filename, "error", err)
		imageWritesTotal.WithLabelValues("decode_error").Inc()
		return
	}

	path, err := w.storage.Save(job.filename, data)
	if err != nil {
		slog.Error("Failed to save receipt image", "filename", job.filename, "bytes", len(data), "error", err)
		imageWritesTotal.WithLabelValues("write_error").Inc()
		return
	}

	slog.Info("Receipt image saved", "path", path, "bytes", len(data))
	imageWritesTotal.WithLabelValues("saved").Inc()
}

// Close stops accepting images and waits for pending writes, or for ctx to end
func (w *ImageWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
