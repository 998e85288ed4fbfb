package handlers

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/logging"
	"filemart/internal/models"
)

const maxUploadSize = 512 << 20

// UploadFile stores a deliverable under uploadDir/files and answers with a
// file reference that products and download links can point at.
func UploadFile(uploadDir string, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/files"
		defer handlePanic(c, log, route)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
		file, err := c.FormFile("file")
		if err != nil {
			respondWithError(c, log, http.StatusBadRequest, route, "file is required")
			return
		}

		ref, err := saveUpload(uploadDir, file)
		if err != nil {
			log.Error(c.Request.Context(), "upload failed", "route", route, "file", file.Filename, "err", err)
			respondWithError(c, log, http.StatusBadRequest, route, err.Error())
			return
		}
		c.JSON(http.StatusCreated, ref)
	}
}

func saveUpload(uploadDir string, file *multipart.FileHeader) (models.FileRef, error) {
	name := filepath.Base(strings.TrimSpace(file.Filename))
	extension := strings.ToLower(filepath.Ext(name))
	if name == "." || name == string(filepath.Separator) || extension == "" {
		return models.FileRef{}, fmt.Errorf("file extension is required")
	}
	if file.Size > maxUploadSize {
		return models.FileRef{}, fmt.Errorf("file too large (max 512MB)")
	}

	dir := filepath.Join(uploadDir, "files")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.FileRef{}, err
	}

	stored := primitive.NewObjectID().Hex() + extension
	out, err := os.Create(filepath.Join(dir, stored))
	if err != nil {
		return models.FileRef{}, err
	}
	defer out.Close()

	in, err := file.Open()
	if err != nil {
		return models.FileRef{}, err
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		return models.FileRef{}, err
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(extension); byExt != "" {
			contentType = byExt
		}
	}
	return models.FileRef{
		ID:          "files/" + stored,
		Name:        name,
		Storage:     models.StorageLocal,
		ContentType: contentType,
	}, nil
}
