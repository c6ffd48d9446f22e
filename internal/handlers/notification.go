// internal/handlers/notification.go
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"adboard-backend/internal/models"
	"adboard-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationHandler struct {
	push        *services.PushService
	devices     *services.DeviceService
	preferences *services.PreferenceService
	deliveries  *services.DeliveryService
}

func NewNotificationHandler(
	push *services.PushService,
	devices *services.DeviceService,
	preferences *services.PreferenceService,
	deliveries *services.DeliveryService,
) *NotificationHandler {
	return &NotificationHandler{
		push:        push,
		devices:     devices,
		preferences: preferences,
		deliveries:  deliveries,
	}
}

// currentUserID pulls the authenticated user from the gin context. The auth
// middleware guarantees it is set on protected routes.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return primitive.NilObjectID, false
	}
	id, ok := v.(primitive.ObjectID)
	return id, ok
}

// RegisterDevice registers or refreshes an FCM device token.
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	type RegisterDeviceRequest struct {
		Token      string `json:"fcm_token" binding:"required"`
		Platform   string `json:"platform" binding:"required,oneof=ios android web"`
		DeviceID   string `json:"device_id"`
		AppVersion string `json:"app_version"`
		OSVersion  string `json:"os_version"`
	}

	var req RegisterDeviceRequest
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	device, err := h.devices.Register(ctx, userID, services.RegisterInput{
		Token:      req.Token,
		Platform:   req.Platform,
		DeviceID:   req.DeviceID,
		AppVersion: req.AppVersion,
		OSVersion:  req.OSVersion,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error registering device token",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Device token registered successfully",
		"device":  device,
	})
}

// UnregisterDevice deactivates a device token. Unknown tokens succeed so
// clients can unregister unconditionally on logout.
func (h *NotificationHandler) UnregisterDevice(c *gin.Context) {
	type UnregisterDeviceRequest struct {
		Token string `json:"fcm_token" binding:"required"`
	}

	var req UnregisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.devices.Unregister(ctx, req.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error unregistering device token",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Device token unregistered successfully",
	})
}

// ListDevices returns the caller's active device registrations.
func (h *NotificationHandler) ListDevices(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	devices, err := h.devices.ActiveDevicesFor(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching devices",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// GetPreferences returns the caller's notification preferences, creating the
// defaults on first access.
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prefs, err := h.preferences.GetOrCreate(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error fetching preferences",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"preferences": prefs,
	})
}

// UpdatePreferences applies a partial update; absent fields keep their
// current value.
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	type PreferencesRequest struct {
		PushEnabled      *bool `json:"push_enabled,omitempty"`
		SoundEnabled     *bool `json:"sound_enabled,omitempty"`
		VibrationEnabled *bool `json:"vibration_enabled,omitempty"`

		NewLeadsEnabled        *bool `json:"new_leads_enabled,omitempty"`
		NewViewsEnabled        *bool `json:"new_views_enabled,omitempty"`
		WishlistUpdatesEnabled *bool `json:"wishlist_updates_enabled,omitempty"`
		SystemMessagesEnabled  *bool `json:"system_messages_enabled,omitempty"`

		QuietHoursEnabled *bool   `json:"quiet_hours_enabled,omitempty"`
		QuietHoursStart   *string `json:"quiet_hours_start,omitempty"`
		QuietHoursEnd     *string `json:"quiet_hours_end,omitempty"`
	}

	var req PreferencesRequest
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
	if req.PushEnabled != nil {
		update["push_enabled"] = *req.PushEnabled
	}
	if req.SoundEnabled != nil {
		update["sound_enabled"] = *req.SoundEnabled
	}
	if req.VibrationEnabled != nil {
		update["vibration_enabled"] = *req.VibrationEnabled
	}
	if req.NewLeadsEnabled != nil {
		update["new_leads_enabled"] = *req.NewLeadsEnabled
	}
	if req.NewViewsEnabled != nil {
		update["new_views_enabled"] = *req.NewViewsEnabled
	}
	if req.WishlistUpdatesEnabled != nil {
		update["wishlist_updates_enabled"] = *req.WishlistUpdatesEnabled
	}
	if req.SystemMessagesEnabled != nil {
		update["system_messages_enabled"] = *req.SystemMessagesEnabled
	}
	if req.QuietHoursEnabled != nil {
		update["quiet_hours_enabled"] = *req.QuietHoursEnabled
	}
	if req.QuietHoursStart != nil {
		if *req.QuietHoursStart != "" {
			if _, err := time.Parse("15:04", *req.QuietHoursStart); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid quiet_hours_start, expected HH:MM",
				})
				return
			}
		}
		update["quiet_hours_start"] = *req.QuietHoursStart
	}
	if req.QuietHoursEnd != nil {
		if *req.QuietHoursEnd != "" {
			if _, err := time.Parse("15:04", *req.QuietHoursEnd); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Invalid quiet_hours_end, expected HH:MM",
				})
				return
			}
		}
		update["quiet_hours_end"] = *req.QuietHoursEnd
	}

	if len(update) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No preferences to update",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prefs, err := h.preferences.Update(ctx, userID, update)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error updating preferences",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Notification preferences updated successfully",
		"preferences": prefs,
	})
}

// GetNotifications returns the caller's delivery records, newest first.
func (h *NotificationHandler) GetNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	unopenedOnly := c.Query("unopened_only") == "true"

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notifications, total, err := h.deliveries.ListForUser(ctx, userID, page, limit, unopenedOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error fetching notifications",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"pagination": gin.H{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// MarkAsOpened marks one notification as opened by its recipient.
func (h *NotificationHandler) MarkAsOpened(c *gin.Context) {
	notificationID := c.Param("id")
	if notificationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Notification ID is required",
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

	opened, err := h.deliveries.MarkOpened(ctx, notificationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error marking notification as opened",
			"details": err.Error(),
		})
		return
	}

	if !opened {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Notification not found or access denied",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Notification marked as opened",
	})
}

// MarkAllAsOpened marks every unopened notification of the caller.
func (h *NotificationHandler) MarkAllAsOpened(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	updated, err := h.deliveries.MarkAllOpened(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error marking notifications as opened",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "All notifications marked as opened",
		"updated_count": updated,
	})
}

// GetStats returns delivery statistics for the caller.
func (h *NotificationHandler) GetStats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := h.deliveries.Stats(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Error getting notification stats",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats": stats,
	})
}

// SendNotification is the admin endpoint for targeted or broadcast pushes.
// With all_users set it multicasts to every active token and reports
// aggregate counts only.
func (h *NotificationHandler) SendNotification(c *gin.Context) {
	type SendNotificationRequest struct {
		UserIDs  []string          `json:"user_ids"`
		AllUsers bool              `json:"all_users"`
		Title    string            `json:"title" binding:"required,max=100"`
		Body     string            `json:"body" binding:"required,max=500"`
		Category string            `json:"category"`
		Data     map[string]string `json:"data,omitempty"`
	}

	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	category := req.Category
	if category == "" {
		category = models.CategorySystemMessage
	}
	if !models.IsValidCategory(category) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid notification category",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if req.AllUsers {
		tokens, err := h.devices.AllActiveTokens(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Error fetching device tokens",
			})
			return
		}

		result, err := h.push.SendToTokens(ctx, tokens, req.Title, req.Body, req.Data)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Error sending broadcast notification",
				"details": err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Broadcast notification sent",
			"sent":    result.SuccessCount,
			"failed":  result.FailureCount,
			"total":   len(tokens),
		})
		return
	}

	var userIDs []primitive.ObjectID
	for _, s := range req.UserIDs {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			continue
		}
		userIDs = append(userIDs, id)
	}

	if len(userIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No valid user IDs provided",
		})
		return
	}

	sent := 0
	for _, userID := range userIDs {
		records, err := h.push.Send(ctx, userID, category, req.Title, req.Body, req.Data, nil)
		if err != nil {
			continue
		}
		sent += len(records)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Notification sent successfully",
		"user_count": len(userIDs),
		"deliveries": sent,
	})
}

// SendTestNotification sends a system message to the calling admin's own
// devices to verify the pipeline end to end.
func (h *NotificationHandler) SendTestNotification(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	records, err := h.push.Send(
		ctx,
		userID,
		models.CategorySystemMessage,
		"Test Notification",
		"This is a test notification to verify push delivery",
		map[string]string{"test": "true"},
		nil,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Error sending test notification",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Test notification sent successfully",
		"deliveries": len(records),
	})
}

// GetCategories lists the known notification categories.
func (h *NotificationHandler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories": models.NotificationCategories,
	})
}
