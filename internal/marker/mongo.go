package marker

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the document collection holding public markers.
const CollectionName = "publicPosts"

type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"` // [longitude, latitude]
}

type mongoMarker struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Lat         float64            `bson:"lat"`
	Lng         float64            `bson:"lng"`
	Location    *geoPoint          `bson:"location,omitempty"`
	PhotoURLs   []string           `bson:"photoUrls"`
	Reviews     []Review           `bson:"reviews"`
	CreatedBy   string             `bson:"createdBy,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt"`
}

func (d mongoMarker) toMarker() Marker {
	return normalize(Marker{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Lat:         d.Lat,
		Lng:         d.Lng,
		PhotoURLs:   d.PhotoURLs,
		Reviews:     d.Reviews,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt,
	})
}

// MongoStore keeps markers as documents; appends use $push.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll, now: time.Now}
}

func (s *MongoStore) Create(ctx context.Context, m Marker) (Marker, error) {
	m = normalize(m)
	doc := mongoMarker{
		ID:          primitive.NewObjectID(),
		Title:       m.Title,
		Description: m.Description,
		Lat:         m.Lat,
		Lng:         m.Lng,
		Location:    &geoPoint{Type: "Point", Coordinates: []float64{m.Lng, m.Lat}},
		PhotoURLs:   m.PhotoURLs,
		Reviews:     m.Reviews,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   s.now().UTC(),
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return Marker{}, err
	}
	return doc.toMarker(), nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (Marker, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return Marker{}, ErrNotFound
	}
	var doc mongoMarker
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Marker{}, ErrNotFound
	}
	if err != nil {
		return Marker{}, err
	}
	return doc.toMarker(), nil
}

func (s *MongoStore) List(ctx context.Context) ([]Marker, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []mongoMarker
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	markers := make([]Marker, 0, len(docs))
	for _, d := range docs {
		markers = append(markers, d.toMarker())
	}
	return markers, nil
}

func (s *MongoStore) AppendReview(ctx context.Context, id string, r Review) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	return s.push(ctx, id, bson.D{{Key: "reviews", Value: r}})
}

func (s *MongoStore) AppendPhotoURLs(ctx context.Context, id string, urls []string) error {
	return s.push(ctx, id, bson.D{{Key: "photoUrls", Value: bson.D{{Key: "$each", Value: urls}}}})
}

func (s *MongoStore) push(ctx context.Context, id string, fields bson.D) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.coll.UpdateByID(ctx, oid, bson.D{{Key: "$push", Value: fields}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
