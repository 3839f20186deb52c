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

type TransactionRepository interface {
	// UpsertByHash persists the transaction keyed on its hash. The immutable
	// fields are written only on insert; a concurrent insert of the same hash
	// is reported as created=false, not as an error.
	UpsertByHash(ctx context.Context, tx *models.Transaction) (created bool, err error)
	FindHashesByWallet(ctx context.Context, walletID primitive.ObjectID) (map[string]struct{}, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	GetByHash(ctx context.Context, hash string) (*models.Transaction, error)
	ListByWallet(ctx context.Context, walletID primitive.ObjectID, limit, offset int) ([]*models.Transaction, error)
	CountForWalletSince(ctx context.Context, walletID primitive.ObjectID, since time.Time) (int64, error)
	FindUnanalyzed(ctx context.Context, limit int) ([]*models.Transaction, error)
	// UpdateScore writes the score fields and flips analyzed in one update, so
	// there is no window where analyzed is true with stale score fields.
	UpdateScore(ctx context.Context, id primitive.ObjectID, score int, level models.RiskLevel, flags []string) error
	CreateIndexes(ctx context.Context) error
}

type transactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) TransactionRepository {
	return &transactionRepository{
		collection: db.Collection("transactions"),
	}
}

func (r *transactionRepository) UpsertByHash(ctx context.Context, tx *models.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, fmt.Errorf("invalid transaction: %w", err)
	}

	update := bson.M{
		"$setOnInsert": bson.M{
			"hash":         tx.Hash,
			"from_address": tx.FromAddress,
			"to_address":   tx.ToAddress,
			"amount":       tx.Amount,
			"timestamp":    tx.Timestamp,
			"blockchain":   tx.Blockchain,
			"wallet_id":    tx.WalletID,
			"risk_score":   0,
			"risk_level":   models.RiskLevelLow,
			"flags":        []string{},
			"analyzed":     false,
			"created_at":   time.Now().UTC(),
		},
	}
	opts := options.Update().SetUpsert(true)

	result, err := r.collection.UpdateOne(ctx, bson.M{"hash": tx.Hash}, update, opts)
	if err != nil {
		// The unique index may still race the upsert; the row exists, which
		// is what the caller asked for.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to upsert transaction: %w", err)
	}

	if result.UpsertedCount > 0 {
		if id, ok := result.UpsertedID.(primitive.ObjectID); ok {
			tx.ID = id
		}
		return true, nil
	}
	return false, nil
}

func (r *transactionRepository) FindHashesByWallet(ctx context.Context, walletID primitive.ObjectID) (map[string]struct{}, error) {
	opts := options.Find().SetProjection(bson.M{"hash": 1})
	cursor, err := r.collection.Find(ctx, bson.M{"wallet_id": walletID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction hashes: %w", err)
	}
	defer cursor.Close(ctx)

	hashes := make(map[string]struct{})
	for cursor.Next(ctx) {
		var doc struct {
			Hash string `bson:"hash"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		hashes[doc.Hash] = struct{}{}
	}

	return hashes, cursor.Err()
}

func (r *transactionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tx)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction by ID: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) GetByHash(ctx context.Context, hash string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"hash": hash}).Decode(&tx)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // not found is not an error for dedup checks
		}
		return nil, fmt.Errorf("failed to get transaction by hash: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) ListByWallet(ctx context.Context, walletID primitive.ObjectID, limit, offset int) ([]*models.Transaction, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetSort(bson.M{"timestamp": -1})

	cursor, err := r.collection.Find(ctx, bson.M{"wallet_id": walletID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions by wallet: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	for cursor.Next(ctx) {
		var tx models.Transaction
		if err := cursor.Decode(&tx); err != nil {
			continue
		}
		transactions = append(transactions, &tx)
	}

	return transactions, cursor.Err()
}

func (r *transactionRepository) CountForWalletSince(ctx context.Context, walletID primitive.ObjectID, since time.Time) (int64, error) {
	filter := bson.M{
		"wallet_id": walletID,
		"timestamp": bson.M{"$gte": since},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *transactionRepository) FindUnanalyzed(ctx context.Context, limit int) ([]*models.Transaction, error) {
	opts := options.Find().
		SetLimit(int64(limit)).
		SetSort(bson.M{"created_at": 1}) // oldest first

	cursor, err := r.collection.Find(ctx, bson.M{"analyzed": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find unanalyzed transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	for cursor.Next(ctx) {
		var tx models.Transaction
		if err := cursor.Decode(&tx); err != nil {
			continue
		}
		transactions = append(transactions, &tx)
	}

	return transactions, cursor.Err()
}

func (r *transactionRepository) UpdateScore(ctx context.Context, id primitive.ObjectID, score int, level models.RiskLevel, flags []string) error {
	if flags == nil {
		flags = []string{}
	}
	update := bson.M{
		"$set": bson.M{
			"risk_score":  score,
			"risk_level":  level,
			"flags":       flags,
			"analyzed":    true,
			"analyzed_at": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update transaction score: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("transaction not found for score update")
	}
	return nil
}

// CreateIndexes creates necessary indexes for the transaction collection
func (r *transactionRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "wallet_id", Value: 1}, {Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "analyzed", Value: 1}, {Key: "created_at", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}
	return nil
}
