package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const collectionName = "moments"

// VectorMemory stores notable moments as embedded vectors in Qdrant so
// participants can recall semantically related history when composing a
// message. It satisfies the generator's Recaller contract.
type VectorMemory struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	embedder    *Embedder
	logger      *zap.Logger
}

// NewVectorMemory dials Qdrant and ensures the moments collection exists.
func NewVectorMemory(ctx context.Context, host string, port int, embedder *Embedder, logger *zap.Logger) (*VectorMemory, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}

	m := &VectorMemory{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		embedder:    embedder,
		logger:      logger,
	}
	if err := m.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return m, nil
}

func (m *VectorMemory) ensureCollection(ctx context.Context) error {
	_, err := m.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: collectionName})
	if err == nil {
		return nil
	}
	_, err = m.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(m.embedder.Dimension()),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collectionName, err)
	}
	return nil
}

// Remember embeds a moment and stores it under the participant's ID.
func (m *VectorMemory) Remember(ctx context.Context, personaID, text string) error {
	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed moment: %w", err)
	}

	_, err = m.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collectionName,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewString()}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vectors[0]}}},
				Payload: map[string]*pb.Value{
					"persona_id": {Kind: &pb.Value_StringValue{StringValue: personaID}},
					"text":       {Kind: &pb.Value_StringValue{StringValue: text}},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert moment: %w", err)
	}
	return nil
}

// Recall returns up to limit stored moments for the participant that are
// semantically closest to the query.
func (m *VectorMemory) Recall(ctx context.Context, personaID, query string, limit int) ([]string, error) {
	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	resp, err := m.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collectionName,
		Vector:         vectors[0],
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key:   "persona_id",
							Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: personaID}},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search moments: %w", err)
	}

	moments := make([]string, 0, len(resp.Result))
	for _, r := range resp.Result {
		if v, ok := r.Payload["text"]; ok {
			if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
				moments = append(moments, sv.StringValue)
			}
		}
	}
	return moments, nil
}

// Memorize stores a moment asynchronously. Storage failures are logged and
// dropped so memory never blocks chat.
func (m *VectorMemory) Memorize(personaID, text string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.Remember(ctx, personaID, text); err != nil {
			m.logger.Warn("moment not stored", zap.String("persona", personaID), zap.Error(err))
		}
	}()
}

// Close tears down the Qdrant connection.
func (m *VectorMemory) Close() error {
	return m.conn.Close()
}
