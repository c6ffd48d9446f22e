package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFailedDeliveryFilterExcludesMissingField(t *testing.T) {
	userID := primitive.NewObjectID()

	filter := failedDeliveryFilter(userID)
	assert.Equal(t, userID, filter["recipient_id"])

	cond, ok := filter["error_message"].(bson.M)
	require.True(t, ok, "error_message condition must be a document")
	// Delivered records omit error_message, so the filter has to demand the
	// field is present in addition to being non-empty.
	assert.Equal(t, true, cond["$exists"])
	assert.Equal(t, "", cond["$ne"])
}
