package db

import (
	"context"
	"errors"
	"fmt"

	"podcast-search/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrUnknownDuration = errors.New("episode duration unknown")
)

// Client wraps the MongoDB client and the episodes collection
type Client struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	collection  *mongo.Collection
}

// NewClient creates a new database client
func NewClient(connectionString, databaseName, collectionName string) *Client {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Return client with nil - error will be caught during Connect()
		return &Client{}
	}

	database := mongoClient.Database(databaseName)
	collection := database.Collection(collectionName)

	return &Client{
		mongoClient: mongoClient,
		database:    database,
		collection:  collection,
	}
}

// Connect establishes connection to MongoDB and makes sure eid is unique
func (c *Client) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	if err := c.mongoClient.Ping(ctx, nil); err != nil {
		return err
	}

	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "eid", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.collection.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("create eid index: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// SaveEpisode upserts an episode by eid
func (c *Client) SaveEpisode(ctx context.Context, episode *domain.Episode) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}
	if episode.EID == "" {
		return fmt.Errorf("episode eid is required")
	}

	filter := bson.M{"eid": episode.EID}
	update := bson.M{"$set": episode}
	opts := options.Update().SetUpsert(true)

	_, err := c.collection.UpdateOne(ctx, filter, update, opts)
	return err
}

// MarkTranscribed flags an episode as having an indexed transcript.
func (c *Client) MarkTranscribed(ctx context.Context, eid string) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}
	res, err := c.collection.UpdateOne(ctx, bson.M{"eid": eid}, bson.M{"$set": bson.M{"transcribed": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrEpisodeNotFound, eid)
	}
	return nil
}

// GetEpisode loads one episode by eid
func (c *Client) GetEpisode(ctx context.Context, eid string) (*domain.Episode, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	var episode domain.Episode
	err := c.collection.FindOne(ctx, bson.M{"eid": eid}).Decode(&episode)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrEpisodeNotFound, eid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load episode %s: %w", eid, err)
	}
	return &episode, nil
}

// Duration returns the playback length of an episode in seconds.
func (c *Client) Duration(ctx context.Context, eid string) (float64, error) {
	episode, err := c.GetEpisode(ctx, eid)
	if err != nil {
		return 0, err
	}
	if episode.Duration <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDuration, eid)
	}
	return episode.Duration, nil
}

// ListTranscribed returns all transcribed episodes ordered by publication date
func (c *Client) ListTranscribed(ctx context.Context) ([]domain.Episode, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	opts := options.Find().SetSort(bson.D{{Key: "pub_date", Value: 1}})
	cursor, err := c.collection.Find(ctx, bson.M{"transcribed": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer cursor.Close(ctx)

	var episodes []domain.Episode
	for cursor.Next(ctx) {
		var episode domain.Episode
		if err := cursor.Decode(&episode); err != nil {
			continue // Skip invalid documents
		}
		episodes = append(episodes, episode)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return episodes, nil
}

// GetAllEIDs fetches all episode ids from the database and returns them as a map (set)
func (c *Client) GetAllEIDs(ctx context.Context) (map[string]bool, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	// Query to get only the eid field from all documents
	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"eid": 1, "_id": 0}))
	if err != nil {
		return nil, fmt.Errorf("failed to query eids: %w", err)
	}
	defer cursor.Close(ctx)

	eidSet := make(map[string]bool)
	for cursor.Next(ctx) {
		var result struct {
			EID string `bson:"eid"`
		}
		if err := cursor.Decode(&result); err != nil {
			continue
		}
		if result.EID != "" {
			eidSet[result.EID] = true
		}
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return eidSet, nil
}
