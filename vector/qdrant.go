package vector

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/hubenschmidt/go-semcat/core"
)

// QdrantIndex implements Index using Qdrant over gRPC. Point IDs are the
// category UUIDs; the category name travels in the payload.
//
// Qdrant orders equal scores by its own rules, so ties are not guaranteed to
// follow insertion order the way MemoryIndex does.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
}

// NewQdrantIndex connects to host:port and makes sure the collection exists
// with cosine distance and the given dimension.
func NewQdrantIndex(ctx context.Context, host string, port int, collection string, dimension int) (*QdrantIndex, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	idx := &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimension:   dimension,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return idx, nil
}

func (r *QdrantIndex) ensureCollection(ctx context.Context) error {
	_, err := r.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: r.collection})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("qdrant get collection: %w", err)
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(r.dimension),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

func (r *QdrantIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(records))
	for i, rec := range records {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: rec.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: toFloat32(rec.Vector)}}},
			Payload: map[string]*pb.Value{
				"name": {Kind: &pb.Value_StringValue{StringValue: rec.Name}},
			},
		}
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Replace deletes every point in the collection, then upserts records.
// Qdrant has no multi-request transaction, so a concurrent search can see
// the collection part way through.
func (r *QdrantIndex) Replace(ctx context.Context, records []Record) error {
	wait := true
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Filter{
			Filter: &pb.Filter{},
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant purge: %w", err)
	}
	return r.Upsert(ctx, records)
}

func (r *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}

	wait := true
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{PointsSelectorOneOf: &pb.PointsSelector_Points{
			Points: &pb.PointsIdsList{Ids: pointIDs},
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w", err)
	}
	return nil
}

func (r *QdrantIndex) Search(ctx context.Context, query []float64, topK int, threshold float64) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}
	if len(query) != r.dimension {
		return nil, fmt.Errorf("qdrant search: %w: query has %d, index has %d", core.ErrDimensionMismatch, len(query), r.dimension)
	}
	if err := CheckVector(query); err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	scoreThreshold := float32(threshold)
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         toFloat32(query),
		Limit:          uint64(topK),
		ScoreThreshold: &scoreThreshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]Match, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = Match{
			ID:    pt.Id.GetUuid(),
			Name:  pt.Payload["name"].GetStringValue(),
			Score: float64(pt.Score),
			Rank:  i + 1,
		}
	}
	return results, nil
}

func (r *QdrantIndex) Close() error {
	return r.conn.Close()
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

var _ Index = (*QdrantIndex)(nil)
