package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"github.com/techagentng/achat/config"
	"github.com/techagentng/achat/db"
	errs "github.com/techagentng/achat/errors"
	"github.com/techagentng/achat/models"
	"gorm.io/gorm"

	// image decoders for content sniffed uploads
	_ "image/gif"
	_ "image/png"
)

const (
	// MaxUploadSize is the hard ceiling enforced before any network call.
	MaxUploadSize = 100 * 1024 * 1024

	// Images larger than this are downscaled and recompressed before upload.
	maxInlineImageBytes = 1 * 1024 * 1024
	maxImageDimension   = 1920
	jpegQuality         = 80
	thumbnailWidth      = 200
)

// Attachment is the metadata handed back to the chat pipeline after a
// successful upload.
type Attachment struct {
	Kind         string  `json:"kind"`
	URL          string  `json:"url"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Filename     string  `json:"filename"`
	Size         int64   `json:"size"`
	MimeType     string  `json:"mime_type"`
	Duration     float64 `json:"duration,omitempty"`
}

type UploadOptions struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID

	// Duration in seconds for audio/video, reported by the capturing client.
	Duration float64
}

type MediaService interface {
	ProcessAndUploadMedia(ctx context.Context, fileHeader *multipart.FileHeader, opts UploadOptions) (*Attachment, error)
	UploadProfileImage(ctx context.Context, fileHeader *multipart.FileHeader, userID uuid.UUID) (string, error)
}

type mediaService struct {
	Config    *config.Config
	mediaRepo db.MediaRepository
	chatRepo  db.ChatRepository
}

func NewMediaService(mediaRepo db.MediaRepository, chatRepo db.ChatRepository, conf *config.Config) MediaService {
	return &mediaService{
		Config:    conf,
		mediaRepo: mediaRepo,
		chatRepo:  chatRepo,
	}
}

func generateUniqueFilename(extension string) string {
	timestamp := time.Now().UnixNano()
	randomUUID := uuid.New()
	return fmt.Sprintf("%d_%s%s", timestamp, randomUUID, extension)
}

// getFileType maps a sniffed content type onto a message kind.
func getFileType(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg", "image/png", "image/gif":
		return models.MessageImage
	case "video/mp4", "video/avi", "video/quicktime", "video/webm":
		return models.MessageVideo
	case "audio/mpeg", "audio/wav", "audio/ogg", "audio/flac", "application/ogg":
		return models.MessageAudio
	case "application/pdf", "application/zip", "text/plain; charset=utf-8", "application/octet-stream":
		return models.MessageFile
	default:
		return ""
	}
}

// ProcessAndUploadMedia validates, optionally recompresses, and uploads one
// attachment. Validation failures surface before anything touches the
// network.
func (m *mediaService) ProcessAndUploadMedia(ctx context.Context, fileHeader *multipart.FileHeader, opts UploadOptions) (*Attachment, error) {
	conv, err := m.chatRepo.GetConversation(opts.ConversationID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errs.ErrNotFound
		}
		return nil, errs.ErrUploadFailed
	}
	if !conv.HasParticipant(opts.UserID) {
		return nil, errs.ErrPermissionDenied
	}

	if fileHeader.Size > MaxUploadSize {
		return nil, errs.ErrPayloadTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, errs.ErrUploadFailed
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, errs.ErrUploadFailed
	}

	contentType := http.DetectContentType(fileBytes)
	kind := getFileType(contentType)
	if kind == "" {
		return nil, errs.ErrUnsupportedFormat
	}

	attachment := &Attachment{
		Kind:     kind,
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: contentType,
	}
	if kind == models.MessageAudio || kind == models.MessageVideo {
		attachment.Duration = opts.Duration
	}

	var thumbBytes []byte
	if kind == models.MessageImage {
		fileBytes, thumbBytes, err = m.processImage(fileBytes)
		if err != nil {
			return nil, err
		}
		if int64(len(fileBytes)) != fileHeader.Size {
			attachment.Size = int64(len(fileBytes))
			attachment.MimeType = "image/jpeg"
		}
	}

	metadata := map[string]string{
		"uploader-id":       opts.UserID.String(),
		"message-kind":      kind,
		"group-chat":        strconv.FormatBool(conv.Kind == models.ConversationGroup),
		"original-filename": fileHeader.Filename,
	}

	folderName := kind + "s"
	key := fmt.Sprintf("media/%s/%s", folderName, generateUniqueFilename(filepath.Ext(fileHeader.Filename)))
	fileURL, err := m.mediaRepo.UploadMedia(ctx, key, fileBytes, attachment.MimeType, metadata)
	if err != nil {
		log.Printf("media upload failed: %v", err)
		return nil, errs.ErrUploadFailed
	}
	attachment.URL = fileURL

	if len(thumbBytes) > 0 {
		thumbKey := fmt.Sprintf("media/thumbnails/%s", generateUniqueFilename(".jpg"))
		thumbURL, err := m.mediaRepo.UploadMedia(ctx, thumbKey, thumbBytes, "image/jpeg", metadata)
		if err != nil {
			// The full-size upload already succeeded; a missing thumbnail
			// degrades rendering, it does not fail the send.
			log.Printf("thumbnail upload failed: %v", err)
		} else {
			attachment.ThumbnailURL = thumbURL
		}
	}

	return attachment, nil
}

// processImage recompresses oversized images and renders a thumbnail.
// Audio and video pass through ProcessAndUploadMedia untouched.
func (m *mediaService) processImage(fileBytes []byte) ([]byte, []byte, error) {
	img, _, err := image.Decode(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, nil, errs.ErrUnsupportedFormat
	}

	if len(fileBytes) > maxInlineImageBytes {
		scaled := imaging.Fit(img, maxImageDimension, maxImageDimension, imaging.Lanczos)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, nil, errs.ErrUploadFailed
		}
		fileBytes = buf.Bytes()
		img = scaled
	}

	thumbnail := resize.Resize(thumbnailWidth, 0, img, resize.Lanczos3)
	var thumbBuf bytes.Buffer
	if err := jpeg.Encode(&thumbBuf, thumbnail, nil); err != nil {
		return nil, nil, errs.ErrUploadFailed
	}

	return fileBytes, thumbBuf.Bytes(), nil
}

// UploadProfileImage stores a user's profile photo and returns its URL.
func (m *mediaService) UploadProfileImage(ctx context.Context, fileHeader *multipart.FileHeader, userID uuid.UUID) (string, error) {
	if fileHeader.Size > MaxUploadSize {
		return "", errs.ErrPayloadTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", errs.ErrUploadFailed
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return "", errs.ErrUploadFailed
	}

	contentType := http.DetectContentType(fileBytes)
	if getFileType(contentType) != models.MessageImage {
		return "", errs.ErrUnsupportedFormat
	}

	fileBytes, _, err = m.processImage(fileBytes)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("profile/%s%s", userID, filepath.Ext(fileHeader.Filename))
	fileURL, err := m.mediaRepo.UploadMedia(ctx, key, fileBytes, "image/jpeg", map[string]string{
		"uploader-id": userID.String(),
	})
	if err != nil {
		return "", errs.ErrUploadFailed
	}
	return fileURL, nil
}
