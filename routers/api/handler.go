package api

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ImageToVideo-server/models"
	"ImageToVideo-server/pipeline"
	"ImageToVideo-server/service"
)

const (
	MessageMissingConfig = "Missing configuration payload"
	MessageRequestFailed = "Video generation failed. Please retry with different inputs."
	MessageBadConfig     = "Configuration payload is not valid JSON"
)

var errNoVideo = errors.New("gateway returned no video")

// Handler carries the dependencies of the HTTP endpoints.
type Handler struct {
	Gateway pipeline.Gateway
	Catalog *pipeline.Catalog
	Runs    models.RunRepository
	Images  service.ImageStore
	Queue   service.Enqueuer
	// WatchInterval is how often the websocket re-reads a run.
	WatchInterval time.Duration
}

type formError struct {
	status  int
	message string
}

// readGenerationForm extracts the reference images and the configuration
// from a multipart request. The config field is checked before the images.
func readGenerationForm(c *gin.Context) ([]models.ImageAsset, models.VideoConfig, *formError) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.VideoConfig{}, &formError{http.StatusBadRequest, MessageMissingConfig}
	}
	raw := form.Value["config"]
	if len(raw) == 0 || raw[0] == "" {
		return nil, models.VideoConfig{}, &formError{http.StatusBadRequest, MessageMissingConfig}
	}

	files := form.File["images"]
	if len(files) == 0 {
		return nil, models.VideoConfig{}, &formError{http.StatusBadRequest, pipeline.MessageNoImages}
	}

	cfg, err := models.ParseVideoConfig([]byte(raw[0]))
	if errors.Is(err, models.ErrMalformedConfig) {
		slog.Warn("Rejected malformed config", "error", err)
		return nil, models.VideoConfig{}, &formError{http.StatusBadRequest, MessageBadConfig}
	}
	if err != nil {
		return nil, models.VideoConfig{}, &formError{http.StatusBadRequest, err.Error()}
	}

	images := make([]models.ImageAsset, 0, len(files))
	for _, fh := range files {
		img, err := readImage(fh)
		if err != nil {
			return nil, models.VideoConfig{}, &formError{http.StatusInternalServerError, MessageRequestFailed}
		}
		images = append(images, img)
	}
	return images, cfg, nil
}

func readImage(fh *multipart.FileHeader) (models.ImageAsset, error) {
	f, err := fh.Open()
	if err != nil {
		return models.ImageAsset{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return models.ImageAsset{}, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = service.ContentTypeFor(fh.Filename)
	}
	return models.ImageAsset{
		Name:        fh.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
