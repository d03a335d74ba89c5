package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/yourusername/queryweaver/models"
)

// VectorAdapter serves vector-type sources backed by Qdrant over gRPC
type VectorAdapter struct {
	conns       map[string]*grpc.ClientConn
	points      map[string]qdrant.PointsClient
	collections map[string]qdrant.CollectionsClient
}

// NewVectorAdapter dials each configured Qdrant source. The DSN is the
// host:port of the gRPC endpoint.
func NewVectorAdapter(sources []Source) (*VectorAdapter, error) {
	a := &VectorAdapter{
		conns:       make(map[string]*grpc.ClientConn),
		points:      make(map[string]qdrant.PointsClient),
		collections: make(map[string]qdrant.CollectionsClient),
	}

	for _, src := range sources {
		conn, err := grpc.NewClient(src.DSN,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to dial vector source %s: %w", src.ID, err)
		}
		a.conns[src.ID] = conn
		a.points[src.ID] = qdrant.NewPointsClient(conn)
		a.collections[src.ID] = qdrant.NewCollectionsClient(conn)
	}

	return a, nil
}

// Execute runs a similarity search: the operation's vector against the
// named collection, returning the top-k hits as {id, score, payload} rows
func (a *VectorAdapter) Execute(ctx context.Context, op *models.Operation) (*models.QueryResult, error) {
	client, ok := a.points[op.SourceID]
	if !ok {
		return nil, fmt.Errorf("vector source not configured: %s", op.SourceID)
	}
	if len(op.Params.Vector) == 0 {
		return nil, fmt.Errorf("vector operation %s has no query vector", op.ID)
	}

	limit := op.Params.TopK
	if limit <= 0 {
		limit = 10
	}

	start := time.Now()
	resp, err := client.Search(ctx, &qdrant.SearchPoints{
		CollectionName: op.Params.Collection,
		Vector:         op.Params.Vector,
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	result := &models.QueryResult{
		Columns: []string{"id", "score", "payload"},
	}
	for _, hit := range resp.Result {
		payload := make(map[string]any, len(hit.Payload))
		for key, value := range hit.Payload {
			payload[key] = flattenQdrantValue(value)
		}
		payloadJSON, _ := json.Marshal(payload)

		result.Rows = append(result.Rows, []any{
			pointIDString(hit.Id),
			hit.Score,
			string(payloadJSON),
		})
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTime = time.Since(start)
	return result, nil
}

// Describe lists the source's collections as tables with point counts.
// Vector payload fields are schemaless, so columns report the uniform
// search result shape.
func (a *VectorAdapter) Describe(ctx context.Context, sourceID string) (*models.SourceSchema, error) {
	client, ok := a.collections[sourceID]
	if !ok {
		return nil, fmt.Errorf("vector source not configured: %s", sourceID)
	}

	resp, err := client.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	schema := &models.SourceSchema{
		SourceID:   sourceID,
		SourceType: models.SourceTypeVector,
	}

	for _, coll := range resp.Collections {
		table := models.TableSchema{
			Name: coll.Name,
			Columns: []models.ColumnSchema{
				{Name: "id", Type: "string"},
				{Name: "score", Type: "float"},
				{Name: "payload", Type: "json"},
			},
		}

		info, err := client.Get(ctx, &qdrant.GetCollectionInfoRequest{CollectionName: coll.Name})
		if err == nil && info.Result != nil && info.Result.PointsCount != nil {
			table.RowCount = int64(*info.Result.PointsCount)
		}

		schema.Tables = append(schema.Tables, table)
	}

	return schema, nil
}

// Close closes all gRPC connections
func (a *VectorAdapter) Close() error {
	var firstErr error
	for _, conn := range a.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// flattenQdrantValue converts a qdrant payload value to a plain Go value
func flattenQdrantValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	default:
		return v.String()
	}
}

// pointIDString renders a qdrant point id as a string
func pointIDString(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	switch kind := id.GetPointIdOptions().(type) {
	case *qdrant.PointId_Uuid:
		return kind.Uuid
	case *qdrant.PointId_Num:
		return fmt.Sprintf("%d", kind.Num)
	default:
		return ""
	}
}
