package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"filemart/internal/logging"
	"filemart/internal/orders"
)

type createOrderRequest struct {
	ProductIDs []string `json:"productIds" binding:"required,min=1"`
}

func CreateOrder(svc *orders.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, log, route)

		userID, ok := currentUserID(c)
		if !ok {
			respondWithError(c, log, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		ids := make([]primitive.ObjectID, 0, len(req.ProductIDs))
		for _, raw := range req.ProductIDs {
			id, ok := parseObjectID(raw)
			if !ok {
				respondWithError(c, log, http.StatusBadRequest, route, "invalid product id: "+raw)
				return
			}
			ids = append(ids, id)
		}

		order, err := svc.Create(c.Request.Context(), userID, ids)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func ListMyOrders(svc *orders.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, log, route)

		userID, ok := currentUserID(c)
		if !ok {
			respondWithError(c, log, http.StatusUnauthorized, route, "unauthorized")
			return
		}
		list, err := svc.ListMine(c.Request.Context(), userID)
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// PayOrder simulates a successful payment and returns the issued links.
func PayOrder(svc *orders.Service, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/orders/:id/pay"
		defer handlePanic(c, log, route)

		id, ok := parseObjectID(c.Param("id"))
		if !ok {
			respondWithError(c, log, http.StatusBadRequest, route, "invalid order id")
			return
		}

		order, issued, err := svc.MarkPaid(c.Request.Context(), id)
		if err != nil {
			respondError(c, log, route, err)
			return
		}

		grants := make([]gin.H, 0, len(issued))
		for _, g := range issued {
			grants = append(grants, gin.H{
				"token":        g.Grant.Token,
				"fileId":       g.Grant.FileID,
				"fileName":     g.Grant.FileName,
				"downloadUrl":  g.DownloadURL,
				"expires":      g.Grant.ExpiresAt,
				"maxDownloads": g.Grant.MaxDownloads,
			})
		}
		c.JSON(http.StatusOK, gin.H{"order": order, "downloads": grants})
	}
}
