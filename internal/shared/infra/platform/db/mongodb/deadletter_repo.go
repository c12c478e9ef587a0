package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	sharedDomain "github.com/davicafu/invoiceflow/internal/shared/domain"
)

// DeadLetterRepoMongoDB guarda los mensajes muertos en la colección dead_letters.
type DeadLetterRepoMongoDB struct {
	coll *mongo.Collection
}

// Connect abre el cliente y comprueba el primario.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("could not ping mongoDB: %w", err)
	}
	return client, nil
}

func NewDeadLetterRepoMongoDB(client *mongo.Client, dbName string) *DeadLetterRepoMongoDB {
	return &DeadLetterRepoMongoDB{coll: client.Database(dbName).Collection("dead_letters")}
}

// EnsureIndexes crea el índice por fecha usado por List.
func (r *DeadLetterRepoMongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "failedOnUtc", Value: -1}},
	})
	return err
}

// Los ids se guardan como texto para que se lean igual desde cualquier cliente.
type mongoDeadLetter struct {
	ID          string            `bson:"_id"`
	Queue       string            `bson:"queue"`
	Type        string            `bson:"type"`
	Body        string            `bson:"body"`
	Headers     map[string]string `bson:"headers,omitempty"`
	Deliveries  int               `bson:"deliveries"`
	Error       string            `bson:"error"`
	FailedOnUtc time.Time         `bson:"failedOnUtc"`
}

func (r *DeadLetterRepoMongoDB) Save(ctx context.Context, dl sharedDomain.DeadLetter) error {
	doc := mongoDeadLetter{
		ID:          dl.ID.String(),
		Queue:       dl.Queue,
		Type:        dl.Type,
		Body:        dl.Body,
		Headers:     dl.Headers,
		Deliveries:  dl.Deliveries,
		Error:       sharedDomain.TruncateError(dl.Error),
		FailedOnUtc: dl.FailedOnUtc.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("save dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepoMongoDB) List(ctx context.Context, limit, offset int) ([]sharedDomain.DeadLetter, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "failedOnUtc", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []sharedDomain.DeadLetter
	for cursor.Next(ctx) {
		var doc mongoDeadLetter
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		dl, err := fromMongoDeadLetter(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, cursor.Err()
}

func fromMongoDeadLetter(doc mongoDeadLetter) (sharedDomain.DeadLetter, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return sharedDomain.DeadLetter{}, fmt.Errorf("invalid dead letter id %q: %w", doc.ID, err)
	}
	return sharedDomain.DeadLetter{
		ID:          id,
		Queue:       doc.Queue,
		Type:        doc.Type,
		Body:        doc.Body,
		Headers:     doc.Headers,
		Deliveries:  doc.Deliveries,
		Error:       doc.Error,
		FailedOnUtc: doc.FailedOnUtc.UTC(),
	}, nil
}

var _ sharedDomain.DeadLetterStore = (*DeadLetterRepoMongoDB)(nil)
