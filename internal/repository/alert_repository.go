package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"aml-monitor/internal/models"
)

type AlertRepository interface {
	// CreateIfAbsent inserts the alert unless one already exists for the same
	// trigger: (transaction_id, type) for transaction alerts, or an unresolved
	// (wallet_id, type) for wallet alerts. Returns created=false on a match.
	CreateIfAbsent(ctx context.Context, alert *models.Alert) (created bool, err error)
	GetByTransaction(ctx context.Context, transactionID primitive.ObjectID, alertType models.AlertType) (*models.Alert, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Alert, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
	MarkResolved(ctx context.Context, id primitive.ObjectID) error
	CreateIndexes(ctx context.Context) error
}

type alertRepository struct {
	collection *mongo.Collection
}

func NewAlertRepository(db *mongo.Database) AlertRepository {
	return &alertRepository{
		collection: db.Collection("alerts"),
	}
}

func (r *alertRepository) CreateIfAbsent(ctx context.Context, alert *models.Alert) (bool, error) {
	var filter bson.M
	if alert.TransactionID != nil {
		filter = bson.M{
			"transaction_id": *alert.TransactionID,
			"type":           alert.Type,
		}
	} else {
		filter = bson.M{
			"wallet_id":   alert.WalletID,
			"type":        alert.Type,
			"is_resolved": false,
		}
	}

	alert.CreatedAt = time.Now().UTC()
	doc := bson.M{
		"user_id":     alert.UserID,
		"wallet_id":   alert.WalletID,
		"type":        alert.Type,
		"severity":    alert.Severity,
		"title":       alert.Title,
		"description": alert.Description,
		"is_read":     false,
		"is_resolved": false,
		"created_at":  alert.CreatedAt,
	}
	if alert.TransactionID != nil {
		doc["transaction_id"] = *alert.TransactionID
	}

	opts := options.Update().SetUpsert(true)
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$setOnInsert": doc}, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create alert: %w", err)
	}

	if result.UpsertedCount > 0 {
		if id, ok := result.UpsertedID.(primitive.ObjectID); ok {
			alert.ID = id
		}
		return true, nil
	}
	return false, nil
}

func (r *alertRepository) GetByTransaction(ctx context.Context, transactionID primitive.ObjectID, alertType models.AlertType) (*models.Alert, error) {
	filter := bson.M{
		"transaction_id": transactionID,
		"type":           alertType,
	}

	var alert models.Alert
	err := r.collection.FindOne(ctx, filter).Decode(&alert)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get alert by transaction: %w", err)
	}
	return &alert, nil
}

func (r *alertRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Alert, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.M{"created_at": -1})

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts by user: %w", err)
	}
	defer cursor.Close(ctx)

	var alerts []*models.Alert
	for cursor.Next(ctx) {
		var alert models.Alert
		if err := cursor.Decode(&alert); err != nil {
			continue
		}
		alerts = append(alerts, &alert)
	}

	return alerts, cursor.Err()
}

func (r *alertRepository) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	return r.setFlag(ctx, id, "is_read")
}

func (r *alertRepository) MarkResolved(ctx context.Context, id primitive.ObjectID) error {
	return r.setFlag(ctx, id, "is_resolved")
}

func (r *alertRepository) setFlag(ctx context.Context, id primitive.ObjectID, field string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{field: true}})
	if err != nil {
		return fmt.Errorf("failed to update alert %s: %w", field, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("alert not found")
	}
	return nil
}

// CreateIndexes creates necessary indexes for the alert collection
func (r *alertRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "transaction_id", Value: 1}, {Key: "type", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"transaction_id": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "wallet_id", Value: 1}, {Key: "type", Value: 1}, {Key: "is_resolved", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create alert indexes: %w", err)
	}
	return nil
}
