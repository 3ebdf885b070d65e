package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/agrilink/internal/domain/model"
	"github.com/polkiloo/agrilink/internal/server/http/dto"
	"github.com/polkiloo/agrilink/internal/usecase"
)

// ListingHandler manages the product catalogue.
type ListingHandler struct {
	facade ListingFacade
}

// NewListingHandler constructs ListingHandler.
func NewListingHandler(facade ListingFacade) *ListingHandler {
	return &ListingHandler{facade: facade}
}

// Browse handles GET /api/listings.
func (h *ListingHandler) Browse(c *gin.Context) {
	filter := model.ListingFilter{
		Category:    c.Query("category"),
		Location:    c.Query("location"),
		Search:      c.Query("q"),
		InStockOnly: c.Query("in_stock") == "true",
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))
	if seller := c.Query("seller_id"); seller != "" {
		id, err := strconv.ParseInt(seller, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid seller_id"))
			return
		}
		filter.SellerID = id
	}

	listings, err := h.facade.Listings(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toListingResponses(listings))
}

// Get handles GET /api/listings/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	listing, err := h.facade.Listing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toListingResponse(*listing))
}

// Mine handles GET /api/user/listings.
func (h *ListingHandler) Mine(c *gin.Context) {
	listings, err := h.facade.SellerListings(c.Request.Context(), CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toListingResponses(listings))
}

// Create handles POST /api/listings.
func (h *ListingHandler) Create(c *gin.Context) {
	var req dto.ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("malformed request"))
		return
	}
	listing, err := h.facade.CreateListing(c.Request.Context(), CurrentUserID(c), toListingInput(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toListingResponse(*listing))
}

// Update handles PUT /api/listings/:id.
func (h *ListingHandler) Update(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	var req dto.ListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("malformed request"))
		return
	}
	listing, err := h.facade.UpdateListing(c.Request.Context(), CurrentUserID(c), id, toListingInput(req))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toListingResponse(*listing))
}

// Delete handles DELETE /api/listings/:id.
func (h *ListingHandler) Delete(c *gin.Context) {
	id, ok := int64Param(c, "id")
	if !ok {
		return
	}
	if err := h.facade.DeleteListing(c.Request.Context(), CurrentUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func toListingInput(req dto.ListingRequest) usecase.ListingInput {
	inStock := true
	if req.InStock != nil {
		inStock = *req.InStock
	}
	return usecase.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Unit:        req.Unit,
		Category:    req.Category,
		Location:    req.Location,
		ImageURL:    req.ImageURL,
		InStock:     inStock,
		MinOrder:    req.MinOrder,
	}
}

func toListingResponse(l model.Listing) dto.ListingResponse {
	return dto.ListingResponse{
		ID:          l.ID,
		SellerID:    l.SellerID,
		Title:       l.Title,
		Description: l.Description,
		Price:       l.Price,
		Unit:        l.Unit,
		Category:    l.Category,
		Location:    l.Location,
		ImageURL:    l.ImageURL,
		InStock:     l.InStock,
		MinOrder:    l.MinOrder,
		CreatedAt:   l.CreatedAt,
	}
}

func toListingResponses(listings []model.Listing) []dto.ListingResponse {
	resp := make([]dto.ListingResponse, 0, len(listings))
	for _, l := range listings {
		resp = append(resp, toListingResponse(l))
	}
	return resp
}
