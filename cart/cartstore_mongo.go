package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SandaminiI/serandib-microservices/common/api"
)

// MongoCartStore keeps one document per customer in the carts collection.
// All line items of a cart live in a single document, so every mutation is a
// single atomic document write; the coordinator serializes writes per
// customer on top of that.
type MongoCartStore struct {
	collection *mongo.Collection
}

type cartDocument struct {
	CustomerID string          `bson:"_id"`
	LineItems  []*api.LineItem `bson:"line_items"`
	UpdatedAt  time.Time       `bson:"updated_at"`
}

func NewMongoCartStore(client *mongo.Client) *MongoCartStore {
	collection := client.Database("cart").Collection("carts")
	return &MongoCartStore{collection: collection}
}

func (s *MongoCartStore) GetLineItems(ctx context.Context, customerID string) ([]*api.LineItem, error) {
	doc, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return doc.LineItems, nil
}

func (s *MongoCartStore) FindLineItem(ctx context.Context, customerID, cartItemID string) (*api.LineItem, error) {
	doc, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		for _, item := range doc.LineItems {
			if item.ID == cartItemID {
				return item, nil
			}
		}
	}
	return nil, fmt.Errorf("cart %s: item %s: %w", customerID, cartItemID, ErrLineItemNotFound)
}

func (s *MongoCartStore) FindLineItemByProduct(ctx context.Context, customerID, productID string) (*api.LineItem, error) {
	doc, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if doc != nil {
		for _, item := range doc.LineItems {
			if item.ProductID == productID {
				return item, nil
			}
		}
	}
	return nil, fmt.Errorf("cart %s: product %s: %w", customerID, productID, ErrLineItemNotFound)
}

func (s *MongoCartStore) UpsertLineItem(ctx context.Context, customerID, productID string, quantity int32) (*api.LineItem, error) {
	doc, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &cartDocument{CustomerID: customerID}
	}

	now := time.Now()
	var result *api.LineItem

	idx := -1
	for i, item := range doc.LineItems {
		if item.ProductID == productID {
			idx = i
			break
		}
	}

	switch {
	case quantity <= 0 && idx >= 0:
		doc.LineItems = append(doc.LineItems[:idx], doc.LineItems[idx+1:]...)
	case quantity <= 0:
		return nil, nil
	case idx >= 0:
		doc.LineItems[idx].Quantity = quantity
		doc.LineItems[idx].UpdatedAt = now
		result = doc.LineItems[idx]
	default:
		result = &api.LineItem{
			ID:        uuid.New().String(),
			ProductID: productID,
			Quantity:  quantity,
			AddedAt:   now,
			UpdatedAt: now,
		}
		doc.LineItems = append(doc.LineItems, result)
	}

	doc.UpdatedAt = now
	if err := s.save(ctx, doc); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *MongoCartStore) DeleteLineItem(ctx context.Context, customerID, cartItemID string) error {
	doc, err := s.load(ctx, customerID)
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("cart %s: item %s: %w", customerID, cartItemID, ErrLineItemNotFound)
	}

	idx := -1
	for i, item := range doc.LineItems {
		if item.ID == cartItemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("cart %s: item %s: %w", customerID, cartItemID, ErrLineItemNotFound)
	}

	doc.LineItems = append(doc.LineItems[:idx], doc.LineItems[idx+1:]...)
	doc.UpdatedAt = time.Now()
	return s.save(ctx, doc)
}

func (s *MongoCartStore) Clear(ctx context.Context, customerID string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": customerID})
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (s *MongoCartStore) Customers(ctx context.Context) ([]string, error) {
	filter := bson.M{"line_items.0": bson.M{"$exists": true}}
	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query carts: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc cartDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode cart: %w", err)
		}
		ids = append(ids, doc.CustomerID)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return ids, nil
}

func (s *MongoCartStore) load(ctx context.Context, customerID string) (*cartDocument, error) {
	var doc cartDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": customerID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &doc, nil
}

func (s *MongoCartStore) save(ctx context.Context, doc *cartDocument) error {
	if len(doc.LineItems) == 0 {
		return s.Clear(ctx, doc.CustomerID)
	}

	_, err := s.collection.ReplaceOne(
		ctx,
		bson.M{"_id": doc.CustomerID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

var _ CartStore = (*MongoCartStore)(nil)
