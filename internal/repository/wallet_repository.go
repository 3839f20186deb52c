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

var ErrWalletExists = fmt.Errorf("wallet already registered")

type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Wallet, error)
	GetByAddress(ctx context.Context, address string) (*models.Wallet, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Wallet, error)
	FindStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.Wallet, error)
	UpdateLastPolled(ctx context.Context, id primitive.ObjectID, polledAt time.Time) error
	UpdateRisk(ctx context.Context, id primitive.ObjectID, score int, level models.RiskLevel) error
	SetMonitored(ctx context.Context, id primitive.ObjectID, monitored bool) error
	CreateIndexes(ctx context.Context) error
}

type walletRepository struct {
	collection *mongo.Collection
}

func NewWalletRepository(db *mongo.Database) WalletRepository {
	return &walletRepository{
		collection: db.Collection("wallets"),
	}
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	wallet.CreatedAt = time.Now().UTC()
	wallet.UpdatedAt = wallet.CreatedAt

	result, err := r.collection.InsertOne(ctx, wallet)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrWalletExists
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	wallet.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&wallet)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("wallet not found")
		}
		return nil, fmt.Errorf("failed to get wallet by ID: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetByAddress(ctx context.Context, address string) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.collection.FindOne(ctx, bson.M{"address": address}).Decode(&wallet)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // not found is not an error for registration checks
		}
		return nil, fmt.Errorf("failed to get wallet by address: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Wallet, error) {
	opts := options.Find().SetSort(bson.M{"created_at": -1})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallets by user ID: %w", err)
	}
	defer cursor.Close(ctx)

	var wallets []*models.Wallet
	for cursor.Next(ctx) {
		var wallet models.Wallet
		if err := cursor.Decode(&wallet); err != nil {
			continue
		}
		wallets = append(wallets, &wallet)
	}

	return wallets, cursor.Err()
}

// FindStale returns monitored wallets whose last poll is older than the given
// instant, oldest first, bounded by limit. Wallets never polled qualify too.
func (r *walletRepository) FindStale(ctx context.Context, olderThan time.Time, limit int) ([]*models.Wallet, error) {
	filter := bson.M{
		"is_monitored":   true,
		"last_polled_at": bson.M{"$lt": olderThan},
	}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.M{"last_polled_at": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find stale wallets: %w", err)
	}
	defer cursor.Close(ctx)

	var wallets []*models.Wallet
	for cursor.Next(ctx) {
		var wallet models.Wallet
		if err := cursor.Decode(&wallet); err != nil {
			continue
		}
		wallets = append(wallets, &wallet)
	}

	return wallets, cursor.Err()
}

func (r *walletRepository) UpdateLastPolled(ctx context.Context, id primitive.ObjectID, polledAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"last_polled_at": polledAt,
			"updated_at":     time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update wallet last polled: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("wallet not found for last polled update")
	}
	return nil
}

func (r *walletRepository) UpdateRisk(ctx context.Context, id primitive.ObjectID, score int, level models.RiskLevel) error {
	update := bson.M{
		"$set": bson.M{
			"risk_score": score,
			"risk_level": level,
			"updated_at": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update wallet risk: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("wallet not found for risk update")
	}
	return nil
}

func (r *walletRepository) SetMonitored(ctx context.Context, id primitive.ObjectID, monitored bool) error {
	update := bson.M{
		"$set": bson.M{
			"is_monitored": monitored,
			"updated_at":   time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update wallet monitoring flag: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("wallet not found for monitoring update")
	}
	return nil
}

// CreateIndexes creates necessary indexes for the wallet collection
func (r *walletRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "address", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "is_monitored", Value: 1}, {Key: "last_polled_at", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create wallet indexes: %w", err)
	}
	return nil
}
