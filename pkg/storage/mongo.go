package storage

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/shipcost/shipcost/pkg/dataset"
)

const idField = "_id"

// MongoStore implements DocumentStore on MongoDB
type MongoStore struct {
	client  *mongo.Client
	numeric map[string]bool
}

// NewMongoStore connects to uri and checks the server answers
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("MONGO_DB_URL is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoStore{client: client}, nil
}

// Close disconnects from the server
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// FetchTable reads a whole collection. Columns are ordered by first
// appearance across documents; fields absent from a document are missing cells.
func (s *MongoStore) FetchTable(ctx context.Context, database, collection string) (*dataset.Table, error) {
	coll := s.client.Database(database).Collection(collection)

	cur, err := coll.Find(ctx, bson.D{}, options.Find().SetProjection(bson.D{{Key: idField, Value: 0}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s.%s: %w", database, collection, err)
	}
	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", database, collection, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s.%s", ErrEmptyCollection, database, collection)
	}

	return docsToTable(docs)
}

// SetNumericColumns names the columns InsertTable stores as doubles. Cells
// of any other column are kept as strings.
func (s *MongoStore) SetNumericColumns(columns ...string) {
	s.numeric = make(map[string]bool, len(columns))
	for _, c := range columns {
		s.numeric[c] = true
	}
}

// InsertTable stores each row as a document. Finite numbers in numeric
// columns are stored as doubles and missing cells as null.
func (s *MongoStore) InsertTable(ctx context.Context, table *dataset.Table, database, collection string) error {
	if table.Len() == 0 {
		return dataset.ErrEmptyTable
	}
	docs := tableToDocs(table, s.numeric)
	coll := s.client.Database(database).Collection(collection)
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert into %s.%s: %w", database, collection, err)
	}
	return nil
}

func docsToTable(docs []bson.D) (*dataset.Table, error) {
	index := map[string]int{}
	var columns []string
	for _, d := range docs {
		for _, e := range d {
			if e.Key == idField {
				continue
			}
			if _, ok := index[e.Key]; !ok {
				index[e.Key] = len(columns)
				columns = append(columns, e.Key)
			}
		}
	}

	rows := make([][]string, len(docs))
	for i, d := range docs {
		row := make([]string, len(columns))
		for _, e := range d {
			if j, ok := index[e.Key]; ok {
				row[j] = cellFromBSON(e.Value)
			}
		}
		rows[i] = row
	}
	return dataset.NewTable(columns, rows)
}

func tableToDocs(table *dataset.Table, numeric map[string]bool) []interface{} {
	docs := make([]interface{}, table.Len())
	for i, r := range table.Rows {
		d := make(bson.D, len(table.Columns))
		for j, c := range table.Columns {
			d[j] = bson.E{Key: c, Value: cellToBSON(r[j], numeric[c])}
		}
		docs[i] = d
	}
	return docs
}

func cellFromBSON(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return dataset.FormatFloat(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339)
	case primitive.Decimal128:
		return x.String()
	case primitive.Null, primitive.Undefined:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func cellToBSON(cell string, numeric bool) interface{} {
	if dataset.IsMissing(cell) {
		return nil
	}
	if !numeric {
		return cell
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return cell
	}
	return f
}
