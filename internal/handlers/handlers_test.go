package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filemart/internal/common"
	"filemart/internal/logging"
	"filemart/internal/models"
)

func TestRespondError_MapsSentinels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{common.ErrGrantNotFound, http.StatusNotFound, "link_not_found"},
		{common.ErrGrantRevoked, http.StatusForbidden, "link_revoked"},
		{common.ErrGrantExpired, http.StatusGone, "link_expired"},
		{common.ErrQuotaExhausted, http.StatusTooManyRequests, "download_limit_reached"},
		{common.ErrEmailExists, http.StatusConflict, "email_exists"},
		{common.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{fmt.Errorf("wrapped: %w", common.ErrInvalidGrantOptions), http.StatusBadRequest, "invalid_options"},
		{errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, logging.Nop(), "GET /", tc.err)

			assert.Equal(t, tc.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["code"])
			assert.NotContains(t, body["error"], "boom")
		})
	}
}

func TestParsePaginationParams(t *testing.T) {
	page, limit, err := parsePaginationParams("", "10")
	require.NoError(t, err)
	assert.Zero(t, page)
	assert.Zero(t, limit)

	page, limit, err = parsePaginationParams("2", "500")
	require.NoError(t, err)
	assert.Equal(t, int64(2), page)
	assert.Equal(t, int64(maxPageLimit), limit)

	for _, bad := range [][2]string{{"0", "10"}, {"x", "10"}, {"1", "-1"}} {
		_, _, err := parsePaginationParams(bad[0], bad[1])
		assert.ErrorIs(t, err, errInvalidPagination)
	}
}

func TestRespondValidationError_Details(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"email":"x","password":"1"}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Details, "name is required")
	assert.Contains(t, body.Details, "email must be a valid email")
	assert.Contains(t, body.Details, "password must be at least 6 characters")
}

func TestUploadFile_StoresUnderUploadDir(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	r := gin.New()
	r.POST("/admin/files", UploadFile(dir, logging.Nop()))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "course.zip")
	require.NoError(t, err)
	_, _ = part.Write([]byte("PK-data"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/admin/files", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ref models.FileRef
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ref))
	assert.Equal(t, "course.zip", ref.Name)
	assert.Equal(t, models.StorageLocal, ref.Storage)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ref.ID)))
	require.NoError(t, err)
	assert.Equal(t, "PK-data", string(data))
}

func TestUploadFile_RequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/admin/files", UploadFile(t.TempDir(), logging.Nop()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/files", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
