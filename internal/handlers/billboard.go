// internal/handlers/billboard.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"adboard-backend/internal/models"
	"adboard-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type BillboardHandler struct {
	billboardCollection *mongo.Collection
	wishlistCollection  *mongo.Collection
	tracking            *services.TrackingService
	triggers            *services.NotificationTriggers
}

func NewBillboardHandler(
	billboardCollection, wishlistCollection *mongo.Collection,
	tracking *services.TrackingService,
	triggers *services.NotificationTriggers,
) *BillboardHandler {
	return &BillboardHandler{
		billboardCollection: billboardCollection,
		wishlistCollection:  wishlistCollection,
		tracking:            tracking,
		triggers:            triggers,
	}
}

// CreateBillboard creates a listing in pending state. It stays off the
// public map until an admin approves it.
func (h *BillboardHandler) CreateBillboard(c *gin.Context) {
	type CreateBillboardRequest struct {
		City         string   `json:"city" binding:"required,min=2,max=100"`
		Description  string   `json:"description" binding:"max=2000"`
		RoadName     string   `json:"road_name"`
		Address      string   `json:"address"`
		CompanyName  string   `json:"company_name"`
		OOHMediaType string   `json:"ooh_media_type" binding:"required"`
		PriceRange   string   `json:"price_range"`
		Images       []string `json:"images"`
		Latitude     float64  `json:"latitude"`
		Longitude    float64  `json:"longitude"`
	}

	var req CreateBillboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	now := time.Now()
	billboard := models.Billboard{
		UserID:         userID,
		City:           req.City,
		Description:    req.Description,
		RoadName:       req.RoadName,
		Address:        req.Address,
		CompanyName:    req.CompanyName,
		OOHMediaType:   req.OOHMediaType,
		PriceRange:     req.PriceRange,
		Images:         req.Images,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		IsActive:       true,
		ApprovalStatus: models.ApprovalPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.billboardCollection.InsertOne(ctx, billboard)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error creating billboard",
			"details": err.Error(),
		})
		return
	}

	billboard.ID = result.InsertedID.(primitive.ObjectID)

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Billboard created and pending approval",
		"billboard": billboard,
	})
}

// GetBillboards lists approved, active billboards for the public map,
// optionally filtered by city and media type.
func (h *BillboardHandler) GetBillboards(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := bson.M{
		"approval_status": models.ApprovalApproved,
		"is_active":       true,
	}
	if city := c.Query("city"); city != "" {
		filter["city"] = city
	}
	if mediaType := c.Query("ooh_media_type"); mediaType != "" {
		filter["ooh_media_type"] = mediaType
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total, err := h.billboardCollection.CountDocuments(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error counting billboards",
		})
		return
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(skip)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := h.billboardCollection.Find(ctx, filter, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching billboards",
		})
		return
	}
	defer cursor.Close(ctx)

	var billboards []models.Billboard
	if err := cursor.All(ctx, &billboards); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding billboards",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"billboards": billboards,
		"pagination": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// GetBillboard returns one billboard. Pending or inactive listings are only
// visible to their owner and admins.
func (h *BillboardHandler) GetBillboard(c *gin.Context) {
	billboardID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid billboard ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var billboard models.Billboard
	err = h.billboardCollection.FindOne(ctx, bson.M{"_id": billboardID}).Decode(&billboard)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Billboard not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching billboard",
		})
		return
	}

	if !billboard.IsVisible() {
		userID, ok := currentUserID(c)
		isAdmin, _ := c.Get("is_admin")
		admin := isAdmin != nil && isAdmin.(bool)
		if !ok || (!billboard.IsOwnedBy(userID) && !admin) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Billboard not found",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"billboard": billboard,
	})
}

// GetMyBillboards lists the caller's own billboards in every state.
func (h *BillboardHandler) GetMyBillboards(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := h.billboardCollection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching billboards",
		})
		return
	}
	defer cursor.Close(ctx)

	var billboards []models.Billboard
	if err := cursor.All(ctx, &billboards); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding billboards",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"billboards": billboards,
		"count":      len(billboards),
	})
}

// UpdateBillboard lets the owner edit listing fields. Edits do not reset the
// approval state.
func (h *BillboardHandler) UpdateBillboard(c *gin.Context) {
	type UpdateBillboardRequest struct {
		Description *string  `json:"description,omitempty"`
		RoadName    *string  `json:"road_name,omitempty"`
		Address     *string  `json:"address,omitempty"`
		CompanyName *string  `json:"company_name,omitempty"`
		PriceRange  *string  `json:"price_range,omitempty"`
		Images      []string `json:"images,omitempty"`
	}

	billboardID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid billboard ID",
		})
		return
	}

	var req UpdateBillboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	update := bson.M{}
	if req.Description != nil {
		update["description"] = *req.Description
	}
	if req.RoadName != nil {
		update["road_name"] = *req.RoadName
	}
	if req.Address != nil {
		update["address"] = *req.Address
	}
	if req.CompanyName != nil {
		update["company_name"] = *req.CompanyName
	}
	if req.PriceRange != nil {
		update["price_range"] = *req.PriceRange
	}
	if req.Images != nil {
		update["images"] = req.Images
	}

	if len(update) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No fields to update",
		})
		return
	}
	update["updated_at"] = time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.billboardCollection.UpdateOne(
		ctx,
		bson.M{"_id": billboardID, "user_id": userID},
		bson.M{"$set": update},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error updating billboard",
			"details": err.Error(),
		})
		return
	}

	if result.MatchedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Billboard not found or access denied",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Billboard updated successfully",
	})
}

// ToggleActive flips the owner's billboard between active and inactive and
// notifies them of the resulting state.
func (h *BillboardHandler) ToggleActive(c *gin.Context) {
	billboardID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid billboard ID",
		})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var billboard models.Billboard
	err = h.billboardCollection.FindOne(ctx, bson.M{
		"_id":     billboardID,
		"user_id": userID,
	}).Decode(&billboard)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Billboard not found or access denied",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching billboard",
		})
		return
	}

	newState := !billboard.IsActive
	_, err = h.billboardCollection.UpdateOne(
		ctx,
		bson.M{"_id": billboardID},
		bson.M{"$set": bson.M{"is_active": newState, "updated_at": time.Now()}},
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error updating billboard",
		})
		return
	}

	billboard.IsActive = newState
	if newState {
		h.triggers.BillboardActivated(ctx, &billboard)
	} else {
		h.triggers.BillboardDeactivated(ctx, &billboard)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Billboard state updated",
		"is_active": newState,
	})
}

// GetPendingBillboards lists listings awaiting moderation, oldest first.
func (h *BillboardHandler) GetPendingBillboards(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := h.billboardCollection.Find(ctx, bson.M{
		"approval_status": models.ApprovalPending,
	}, opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching pending billboards",
		})
		return
	}
	defer cursor.Close(ctx)

	var billboards []models.Billboard
	if err := cursor.All(ctx, &billboards); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding billboards",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"billboards": billboards,
		"count":      len(billboards),
	})
}

// ApproveBillboard moves a pending listing to approved and notifies the
// owner. Only pending listings can be approved.
func (h *BillboardHandler) ApproveBillboard(c *gin.Context) {
	billboardID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid billboard ID",
		})
		return
	}

	adminID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	var billboard models.Billboard
	err = h.billboardCollection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": billboardID, "approval_status": models.ApprovalPending},
		bson.M{"$set": bson.M{
			"approval_status": models.ApprovalApproved,
			"approved_at":     now,
			"approved_by":     adminID,
			"updated_at":      now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&billboard)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Billboard not found or not pending approval",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error approving billboard",
			"details": err.Error(),
		})
		return
	}

	h.triggers.BillboardApproved(ctx, &billboard)

	c.JSON(http.StatusOK, gin.H{
		"message":   "Billboard approved",
		"billboard": billboard,
	})
}

// RejectBillboard moves a pending listing to rejected with an optional
// reason and notifies the owner.
func (h *BillboardHandler) RejectBillboard(c *gin.Context) {
	type RejectRequest struct {
		Reason string `json:"reason" binding:"max=500"`
	}

	billboardID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid billboard ID",
		})
		return
	}

	// An empty or missing body means rejection without a reason.
	var req RejectRequest
	_ = c.ShouldBindJSON(&req)

	adminID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now()
	var billboard models.Billboard
	err = h.billboardCollection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": billboardID, "approval_status": models.ApprovalPending},
		bson.M{"$set": bson.M{
			"approval_status":  models.ApprovalRejected,
			"rejected_at":      now,
			"rejected_by":      adminID,
			"rejection_reason": req.Reason,
			"updated_at":       now,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&billboard)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Billboard not found or not pending approval",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error rejecting billboard",
			"details": err.Error(),
		})
		return
	}

	h.triggers.BillboardRejected(ctx, &billboard)

	c.JSON(http.StatusOK, gin.H{
		"message":   "Billboard rejected",
		"billboard": billboard,
	})
}

// actorFromContext builds the actor identity for tracking endpoints: the
// authenticated user when present, the client address otherwise.
func actorFromContext(c *gin.Context) services.ActorInfo {
	actor := services.ActorInfo{
		IP:        services.ClientIP(c.GetHeader("X-Forwarded-For"), c.Request.RemoteAddr),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if userID, ok := currentUserID(c); ok {
		actor.UserID = &userID
	}
	return actor
}

// TrackLead records a lead interaction. Suppressed interactions still get a
// 200 with counted=false and the reason.
func (h *BillboardHandler) TrackLead(c *gin.Context) {
	billboardID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid billboard ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.tracking.TrackLead(ctx, billboardID, actorFromContext(c))
	if err != nil {
		if errors.Is(err, services.ErrBillboardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Billboard not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error tracking lead",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// TrackView records a view interaction with the same suppression rules.
func (h *BillboardHandler) TrackView(c *gin.Context) {
	billboardID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid billboard ID",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.tracking.TrackView(ctx, billboardID, actorFromContext(c))
	if err != nil {
		if errors.Is(err, services.ErrBillboardNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Billboard not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error tracking view",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// AddToWishlist saves a billboard for the caller and notifies the owner,
// unless the caller is the owner. Saving twice is a no-op.
func (h *BillboardHandler) AddToWishlist(c *gin.Context) {
	billboardID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid billboard ID",
		})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var billboard models.Billboard
	err = h.billboardCollection.FindOne(ctx, bson.M{"_id": billboardID}).Decode(&billboard)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Billboard not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching billboard",
		})
		return
	}

	entry := models.Wishlist{
		UserID:      userID,
		BillboardID: billboardID,
		CreatedAt:   time.Now(),
	}

	if _, err := h.wishlistCollection.InsertOne(ctx, entry); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			c.JSON(http.StatusOK, gin.H{
				"message": "Billboard already in wishlist",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error adding to wishlist",
			"details": err.Error(),
		})
		return
	}

	if !billboard.IsOwnedBy(userID) {
		h.triggers.WishlistAdded(ctx, &billboard)
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Billboard added to wishlist",
	})
}

// RemoveFromWishlist removes a saved billboard.
func (h *BillboardHandler) RemoveFromWishlist(c *gin.Context) {
	billboardID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid billboard ID",
		})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := h.wishlistCollection.DeleteOne(ctx, bson.M{
		"user_id":      userID,
		"billboard_id": billboardID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error removing from wishlist",
		})
		return
	}

	if result.DeletedCount == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Billboard not in wishlist",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Billboard removed from wishlist",
	})
}

// GetWishlist returns the caller's saved billboards with their current data.
func (h *BillboardHandler) GetWishlist(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cursor, err := h.wishlistCollection.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching wishlist",
		})
		return
	}
	defer cursor.Close(ctx)

	var entries []models.Wishlist
	if err := cursor.All(ctx, &entries); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error decoding wishlist",
		})
		return
	}

	ids := make([]primitive.ObjectID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.BillboardID)
	}

	var billboards []models.Billboard
	if len(ids) > 0 {
		bCursor, err := h.billboardCollection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Error fetching billboards",
			})
			return
		}
		defer bCursor.Close(ctx)

		if err := bCursor.All(ctx, &billboards); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Error decoding billboards",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"wishlist":   entries,
		"billboards": billboards,
		"count":      len(entries),
	})
}
