package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/examproctor/backend/pkg/logger"
)

// Gallery archives enrollment embeddings across sessions so a face can be
// searched against every subject ever enrolled. Purely additive: the live
// proctoring path never depends on it.
type Gallery struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

type Reference struct {
	ID        string
	SessionID string
	UserID    string
	Embedding []float32
}

type Hit struct {
	SessionID string
	UserID    string
	Score     float32
}

func NewGallery(endpoint, collectionName string, vectorDim int) (*Gallery, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Face gallery initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Gallery{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (g *Gallery) Close() error {
	return g.client.Close()
}

func (g *Gallery) CreateCollection(ctx context.Context) error {
	has, err := g.client.HasCollection(ctx, g.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", g.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: g.collectionName,
		Description:    "Enrollment reference embeddings",
		Fields: []*entity.Field{
			{
				Name:       "ref_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", g.vectorDim),
				},
			},
			{
				Name:     "session_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "user_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "enrolled_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = g.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index definition: %w", err)
	}
	err = g.client.CreateIndex(ctx, g.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = g.client.LoadCollection(ctx, g.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", g.collectionName))

	return nil
}

func (g *Gallery) Insert(ctx context.Context, refs []Reference) error {
	if len(refs) == 0 {
		return nil
	}

	refIDs := make([]string, len(refs))
	embeddings := make([][]float32, len(refs))
	sessionIDs := make([]string, len(refs))
	userIDs := make([]string, len(refs))
	enrolledAt := make([]int64, len(refs))

	now := time.Now().Unix()
	for i, ref := range refs {
		refIDs[i] = ref.ID
		embeddings[i] = ref.Embedding
		sessionIDs[i] = ref.SessionID
		userIDs[i] = ref.UserID
		enrolledAt[i] = now
	}

	_, err := g.client.Insert(
		ctx,
		g.collectionName,
		"",
		entity.NewColumnVarChar("ref_id", refIDs),
		entity.NewColumnFloatVector("embedding", g.vectorDim, embeddings),
		entity.NewColumnVarChar("session_id", sessionIDs),
		entity.NewColumnVarChar("user_id", userIDs),
		entity.NewColumnInt64("enrolled_at", enrolledAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert references: %w", err)
	}

	err = g.client.Flush(ctx, g.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("References archived", zap.Int("count", len(refs)))

	return nil
}

func (g *Gallery) Search(ctx context.Context, embedding []float32, topK int) ([]Hit, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := g.client.Search(
		ctx,
		g.collectionName,
		[]string{},
		"",
		[]string{"session_id", "user_id"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]Hit, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			sessionCol := sr.Fields.GetColumn("session_id")
			userCol := sr.Fields.GetColumn("user_id")

			sessionID, _ := sessionCol.Get(i)
			userID, _ := userCol.Get(i)

			hits = append(hits, Hit{
				SessionID: sessionID.(string),
				UserID:    userID.(string),
				Score:     sr.Scores[i],
			})
		}
	}

	logger.Debug("Gallery search completed",
		zap.Int("topK", topK),
		zap.Int("hits", len(hits)),
	)

	return hits, nil
}
