package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"filemart/internal/downloads"
	"filemart/internal/logging"
	"filemart/internal/models"
)

const remainingHeader = "X-Downloads-Remaining"

type GenerateLinkRequest struct {
	FileName     string `json:"fileName"`
	Storage      string `json:"storage" binding:"omitempty,oneof=local s3"`
	ContentType  string `json:"contentType"`
	ExpiryDays   int    `json:"expiryDays"`
	MaxDownloads int    `json:"maxDownloads"`
	UserID       string `json:"userId"`
	ProductID    string `json:"productId"`
}

type grantView struct {
	models.DownloadGrant
	DownloadURL string `json:"downloadUrl"`
	Remaining   int    `json:"remaining"`
}

func viewGrants(svc *downloads.Service, grants []models.DownloadGrant) []grantView {
	out := make([]grantView, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantView{DownloadGrant: g, DownloadURL: svc.DownloadURL(g.Token), Remaining: g.Remaining()})
	}
	return out
}

func GenerateLink(svc *downloads.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /downloads/generate-link/:fileId"
		defer handlePanic(c, log, route)

		var req GenerateLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondValidationError(c, err)
			return
		}

		fileID := strings.TrimSpace(c.Param("fileId"))
		file := models.FileRef{
			ID:          fileID,
			Name:        strings.TrimSpace(req.FileName),
			Storage:     req.Storage,
			ContentType: req.ContentType,
		}
		if file.Name == "" {
			file.Name = fileID
		}

		opts := downloads.GrantOptions{ExpiryDays: req.ExpiryDays, MaxDownloads: req.MaxDownloads}
		if req.UserID != "" {
			id, ok := parseObjectID(req.UserID)
			if !ok {
				respondWithError(c, log, http.StatusBadRequest, route, "invalid userId")
				return
			}
			opts.OwnerID = &id
		}
		if req.ProductID != "" {
			id, ok := parseObjectID(req.ProductID)
			if !ok {
				respondWithError(c, log, http.StatusBadRequest, route, "invalid productId")
				return
			}
			opts.ProductID = &id
		}

		issued, err := svc.IssueGrant(c.Request.Context(), file, opts)
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"token":        issued.Grant.Token,
			"fileId":       issued.Grant.FileID,
			"fileName":     issued.Grant.FileName,
			"downloadUrl":  issued.DownloadURL,
			"expires":      issued.Grant.ExpiresAt,
			"maxDownloads": issued.Grant.MaxDownloads,
		})
	}
}

// Download redeems a link. Remote files are redirected to, local files are
// streamed.
func Download(svc *downloads.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /downloads/:token"
		defer handlePanic(c, log, route)

		r, err := svc.Redeem(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		c.Header(remainingHeader, strconv.Itoa(r.Remaining))
		d := r.Delivery
		if d.IsRedirect() {
			c.Redirect(http.StatusFound, d.RedirectURL)
			return
		}
		if d.Reader == nil {
			respondWithError(c, log, http.StatusInternalServerError, route, "internal server error")
			return
		}
		defer d.Reader.Close()

		c.DataFromReader(http.StatusOK, d.Size, d.ContentType, d.Reader, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", d.Name),
		})
	}
}

func RevokeLink(svc *downloads.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /downloads/revoke-link/:token"
		defer handlePanic(c, log, route)

		if err := svc.Revoke(c.Request.Context(), c.Param("token")); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "download link revoked"})
	}
}

func ListLinks(svc *downloads.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /downloads/links"
		defer handlePanic(c, log, route)

		grants, err := svc.List(c.Request.Context())
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, viewGrants(svc, grants))
	}
}

func ResetLink(svc *downloads.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /downloads/links/:token/reset"
		defer handlePanic(c, log, route)

		if err := svc.ResetCount(c.Request.Context(), c.Param("token")); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "download count reset"})
	}
}

func MyDownloads(svc *downloads.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /downloads/mine"
		defer handlePanic(c, log, route)

		userID, ok := currentUserID(c)
		if !ok {
			respondWithError(c, log, http.StatusUnauthorized, route, "unauthorized")
			return
		}
		grants, err := svc.ListForOwner(c.Request.Context(), userID)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, viewGrants(svc, grants))
	}
}
