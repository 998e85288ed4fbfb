package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"filemart/internal/logging"
	"filemart/internal/models"
	"filemart/internal/orders"
	"filemart/internal/repository"
)

type createProductRequest struct {
	Name        string           `json:"name" binding:"required"`
	Price       float64          `json:"price" binding:"gte=0"`
	SaleEnabled bool             `json:"saleEnabled"`
	SalePrice   float64          `json:"salePrice"`
	Category    []string         `json:"category"`
	Description string           `json:"description"`
	ImagePath   string           `json:"imagePath"`
	Files       []models.FileRef `json:"files" binding:"required,min=1,dive"`
	IsActive    *bool            `json:"isActive"`
}

// GetProducts lists active products. Pagination applies only when both
// page and limit are given.
func GetProducts(catalog *orders.Catalog, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, log, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, log, http.StatusBadRequest, route, err.Error())
			return
		}

		products, err := catalog.List(c.Request.Context(), repository.ProductFilter{
			Category: strings.TrimSpace(c.Query("category")),
			Search:   strings.TrimSpace(c.Query("search")),
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func CreateProduct(catalog *orders.Catalog, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/products"
		defer handlePanic(c, log, route)

		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		product := models.Product{
			Name:        req.Name,
			Price:       req.Price,
			SaleEnabled: req.SaleEnabled,
			SalePrice:   req.SalePrice,
			Category:    models.StringList(req.Category),
			Description: strings.TrimSpace(req.Description),
			ImagePath:   strings.TrimSpace(req.ImagePath),
			Files:       req.Files,
			IsActive:    req.IsActive == nil || *req.IsActive,
		}
		if err := catalog.Create(c.Request.Context(), &product); err != nil {
			respondError(c, log, route, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"product": product, "files": product.Files})
	}
}
