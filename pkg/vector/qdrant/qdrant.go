// Package qdrant provides a vector driver on Qdrant's gRPC points API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/papercomputeco/biosearch/pkg/vector"
)

const (
	// namespaceKey and idKey are reserved payload fields. Qdrant point ids
	// must be UUIDs or integers, so the caller's id travels in the payload.
	namespaceKey = "_namespace"
	idKey        = "_id"
)

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Addr is the gRPC address, e.g. "localhost:6334".
	Addr string

	// Collection holds every namespace of the index.
	Collection string

	// Dimensions sizes the collection when it has to be created.
	Dimensions uint

	// APIKey is sent as the "api-key" header when set.
	APIKey string
}

// Driver implements vector.Driver on a single Qdrant collection, with the
// namespace stored in the payload and used as a filter.
type Driver struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	apiKey      string
	logger      *slog.Logger
}

// NewDriver dials Qdrant and makes sure the collection exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Addr == "" {
		return nil, errors.New("qdrant address is required")
	}
	if c.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}

	conn, err := grpc.NewClient(c.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial qdrant %s: %w", vector.ErrConnection, c.Addr, err)
	}

	d := &Driver{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  c.Collection,
		apiKey:      c.APIKey,
		logger:      logger,
	}

	if err := d.ensureCollection(ctx, c.Dimensions); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("connected to Qdrant",
		"addr", c.Addr,
		"collection", c.Collection,
	)

	return d, nil
}

func (d *Driver) withAuth(ctx context.Context) context.Context {
	if d.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", d.apiKey)
}

func (d *Driver) ensureCollection(ctx context.Context, dims uint) error {
	ctx = d.withAuth(ctx)

	list, err := d.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: list collections: %w", vector.ErrConnection, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == d.collection {
			return nil
		}
	}

	if dims == 0 {
		return fmt.Errorf("qdrant collection %s does not exist and dimensions are not configured", d.collection)
	}

	_, err = d.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", d.collection, err)
	}
	return nil
}

// Upsert stores documents as points.
func (d *Driver) Upsert(ctx context.Context, namespace string, docs []vector.Document) error {
	if namespace == "" {
		return vector.ErrNamespace
	}
	if len(docs) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(docs))
	for i, doc := range docs {
		payload := toPayload(doc.Metadata)
		payload[namespaceKey] = stringValue(namespace)
		payload[idKey] = stringValue(doc.ID)

		points[i] = &pb.PointStruct{
			Id: pointID(namespace, doc.ID),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: doc.Embedding},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := d.points.Upsert(d.withAuth(ctx), &pb.UpsertPoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(docs), err)
	}

	d.logger.Debug("upserted points to qdrant",
		"namespace", namespace,
		"count", len(docs),
	)
	return nil
}

// Query performs a filtered k-NN search inside namespace.
func (d *Driver) Query(ctx context.Context, namespace string, embedding []float32, topK int) ([]vector.Match, error) {
	if namespace == "" {
		return nil, vector.ErrNamespace
	}
	if topK <= 0 {
		topK = 10
	}

	resp, err := d.points.Search(d.withAuth(ctx), &pb.SearchPoints{
		CollectionName: d.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		Filter:         &pb.Filter{Must: []*pb.Condition{fieldMatch(namespaceKey, namespace)}},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]vector.Match, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		meta := fromPayload(r.GetPayload())
		id := meta.String(idKey)
		if id == "" {
			id = r.GetId().GetUuid()
		}
		delete(meta, idKey)
		delete(meta, namespaceKey)

		matches = append(matches, vector.Match{
			ID:       id,
			Score:    r.GetScore(),
			Metadata: meta,
		})
	}

	d.logger.Debug("queried qdrant",
		"namespace", namespace,
		"results", len(matches),
	)
	return matches, nil
}

// Delete removes points by the caller's ids.
func (d *Driver) Delete(ctx context.Context, namespace string, ids []string) error {
	if namespace == "" {
		return vector.ErrNamespace
	}
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = pointID(namespace, id)
	}

	wait := true
	_, err := d.points.Delete(d.withAuth(ctx), &pb.DeletePoints{
		CollectionName: d.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %d points: %w", len(ids), err)
	}
	return nil
}

// Close closes the underlying gRPC connection.
func (d *Driver) Close() error {
	return d.conn.Close()
}

// pointID derives a stable UUID from the namespaced document id.
func pointID(namespace, id string) *pb.PointId {
	u := uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+id))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: u.String()}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func toPayload(meta vector.Metadata) map[string]*pb.Value {
	payload := make(map[string]*pb.Value, len(meta)+2)
	for k, val := range meta {
		switch tv := val.(type) {
		case string:
			payload[k] = stringValue(tv)
		case int:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
		case int64:
			payload[k] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
		case float32:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(tv)}}
		case float64:
			payload[k] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
		case bool:
			payload[k] = &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
		default:
			payload[k] = stringValue(fmt.Sprint(tv))
		}
	}
	return payload
}

func fromPayload(payload map[string]*pb.Value) vector.Metadata {
	meta := make(vector.Metadata, len(payload))
	for k, val := range payload {
		switch kind := val.GetKind().(type) {
		case *pb.Value_StringValue:
			meta[k] = kind.StringValue
		case *pb.Value_IntegerValue:
			meta[k] = kind.IntegerValue
		case *pb.Value_DoubleValue:
			meta[k] = kind.DoubleValue
		case *pb.Value_BoolValue:
			meta[k] = kind.BoolValue
		}
	}
	return meta
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
