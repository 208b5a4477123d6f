package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harentsoaR/prescripto-api/internal/models"
)

const (
	usersCollection         = "users"
	doctorsCollection       = "doctors"
	appointmentsCollection  = "appointments"
	reviewsCollection       = "reviews"
	notificationsCollection = "notifications"
)

// NewMongoStore returns a Store backed by the given database.
func NewMongoStore(db *mongo.Database) *Store {
	return &Store{
		Users:        &mongoUsers{coll: db.Collection(usersCollection)},
		Doctors:      &mongoDoctors{db: db, coll: db.Collection(doctorsCollection)},
		Appointments: &mongoAppointments{coll: db.Collection(appointmentsCollection)},
		Reviews:      &mongoReviews{coll: db.Collection(reviewsCollection)},
		Outbox:       &mongoOutbox{coll: db.Collection(notificationsCollection)},
	}
}

// EnsureIndexes creates the unique indexes the services rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	byCollection := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		doctorsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		appointmentsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "date", Value: -1}}},
			{Keys: bson.D{{Key: "docId", Value: 1}, {Key: "date", Value: -1}}},
		},
		reviewsCollection: {
			{Keys: bson.D{{Key: "appointment", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "doctor", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		notificationsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}
	for name, indexes := range byCollection {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) (*T, error) {
	var out T
	err := coll.FindOne(ctx, filter).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// updateByID applies update and maps a zero match to ErrNotFound.
func updateByID(ctx context.Context, coll *mongo.Collection, id interface{}, update interface{}) error {
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// conditionalUpdate applies update only when filter matches. A miss is
// reported as ErrNotFound when the id does not exist and ErrConflict otherwise.
func conditionalUpdate(ctx context.Context, coll *mongo.Collection, id interface{}, filter bson.M, update interface{}) error {
	filter["_id"] = id
	res, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func insert(ctx context.Context, coll *mongo.Collection, doc interface{}) error {
	_, err := coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

// --- users ---

type mongoUsers struct{ coll *mongo.Collection }

func (r *mongoUsers) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	return insert(ctx, r.coll, u)
}

func (r *mongoUsers) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"_id": id})
}

func (r *mongoUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, r.coll, bson.M{"email": email})
}

func (r *mongoUsers) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	return findAll[models.User](ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *mongoUsers) UpdateProfile(ctx context.Context, id primitive.ObjectID, p models.ProfileUpdate) error {
	return updateByID(ctx, r.coll, id, bson.M{"$set": bson.M{
		"name":    p.Name,
		"address": p.Address,
		"gender":  p.Gender,
		"dob":     p.DOB,
		"phone":   p.Phone,
	}})
}

func (r *mongoUsers) SetImage(ctx context.Context, id primitive.ObjectID, url string) error {
	return updateByID(ctx, r.coll, id, bson.M{"$set": bson.M{"image": url}})
}

func (r *mongoUsers) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return updateByID(ctx, r.coll, id, bson.M{
		"$set":   bson.M{"password": hash, "verifyOTP": ""},
		"$unset": bson.M{"otpExpiry": ""},
	})
}

func (r *mongoUsers) SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiry time.Time) error {
	return updateByID(ctx, r.coll, id, bson.M{"$set": bson.M{"verifyOTP": otp, "otpExpiry": expiry}})
}

func (r *mongoUsers) ClearOTP(ctx context.Context, id primitive.ObjectID, otp string) error {
	if otp == "" {
		return ErrConflict
	}
	return conditionalUpdate(ctx, r.coll, id, bson.M{"verifyOTP": otp}, bson.M{
		"$set":   bson.M{"verifyOTP": ""},
		"$unset": bson.M{"otpExpiry": ""},
	})
}

func (r *mongoUsers) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

// --- doctors ---

type mongoDoctors struct {
	db   *mongo.Database
	coll *mongo.Collection
}

func slotKey(slotDate string) string {
	return "slots_booked." + slotDate
}

func (r *mongoDoctors) Create(ctx context.Context, d *models.Doctor) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if d.SlotsBooked == nil {
		// a null slots_booked would make every later $push on it fail
		d.SlotsBooked = models.SlotMap{}
	}
	return insert(ctx, r.coll, d)
}

func (r *mongoDoctors) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Doctor, error) {
	return findOne[models.Doctor](ctx, r.coll, bson.M{"_id": id})
}

func (r *mongoDoctors) GetByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	return findOne[models.Doctor](ctx, r.coll, bson.M{"email": email})
}

func (r *mongoDoctors) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.Doctor, error) {
	return findAll[models.Doctor](ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"password": 0}))
}

func (r *mongoDoctors) List(ctx context.Context) ([]models.Doctor, error) {
	return findAll[models.Doctor](ctx, r.coll, bson.M{},
		options.Find().SetProjection(bson.M{"password": 0}).SetSort(bson.D{{Key: "date", Value: 1}}))
}

func (r *mongoDoctors) ToggleAvailability(ctx context.Context, id primitive.ObjectID) error {
	toggle := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "available", Value: bson.D{{Key: "$not", Value: "$available"}}}}}},
	}
	return updateByID(ctx, r.coll, id, toggle)
}

func (r *mongoDoctors) UpdateProfile(ctx context.Context, id primitive.ObjectID, fees float64, address models.Address, available bool) error {
	return updateByID(ctx, r.coll, id, bson.M{"$set": bson.M{
		"fees":      fees,
		"address":   address,
		"available": available,
	}})
}

func (r *mongoDoctors) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return updateByID(ctx, r.coll, id, bson.M{"$set": bson.M{"password": hash}})
}

func (r *mongoDoctors) ReserveSlot(ctx context.Context, id primitive.ObjectID, slotDate, slotTime string) error {
	key := slotKey(slotDate)
	// $ne on an array field matches when no element equals slotTime, including
	// when the date key is absent.
	filter := bson.M{"available": true, key: bson.M{"$ne": slotTime}}
	return conditionalUpdate(ctx, r.coll, id, filter, bson.M{"$push": bson.M{key: slotTime}})
}

func (r *mongoDoctors) ReleaseSlot(ctx context.Context, id primitive.ObjectID, slotDate, slotTime string) error {
	return updateByID(ctx, r.coll, id, bson.M{"$pull": bson.M{slotKey(slotDate): slotTime}})
}

func (r *mongoDoctors) SetRating(ctx context.Context, id primitive.ObjectID, average float64, count int) error {
	return updateByID(ctx, r.coll, id, bson.M{"$set": bson.M{"averageRating": average, "ratingCount": count}})
}

func (r *mongoDoctors) DeleteCascade(ctx context.Context, id primitive.ObjectID) error {
	session, err := r.db.Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		res, err := r.coll.DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, ErrNotFound
		}
		if _, err := r.db.Collection(appointmentsCollection).DeleteMany(sc, bson.M{"docId": id}); err != nil {
			return nil, err
		}
		if _, err := r.db.Collection(reviewsCollection).DeleteMany(sc, bson.M{"doctor": id}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (r *mongoDoctors) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

// --- appointments ---

type mongoAppointments struct{ coll *mongo.Collection }

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
}

func (r *mongoAppointments) Create(ctx context.Context, a *models.Appointment) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	return insert(ctx, r.coll, a)
}

func (r *mongoAppointments) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Appointment, error) {
	return findOne[models.Appointment](ctx, r.coll, bson.M{"_id": id})
}

func (r *mongoAppointments) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Appointment, error) {
	return findAll[models.Appointment](ctx, r.coll, bson.M{"userId": userID}, newestFirst())
}

func (r *mongoAppointments) ListByDoctor(ctx context.Context, docID primitive.ObjectID) ([]models.Appointment, error) {
	return findAll[models.Appointment](ctx, r.coll, bson.M{"docId": docID}, newestFirst())
}

func (r *mongoAppointments) ListAll(ctx context.Context) ([]models.Appointment, error) {
	return findAll[models.Appointment](ctx, r.coll, bson.M{}, newestFirst())
}

func (r *mongoAppointments) Latest(ctx context.Context, limit int) ([]models.Appointment, error) {
	return findAll[models.Appointment](ctx, r.coll, bson.M{}, newestFirst().SetLimit(int64(limit)))
}

func (r *mongoAppointments) MarkCancelled(ctx context.Context, id primitive.ObjectID) error {
	return conditionalUpdate(ctx, r.coll, id,
		bson.M{"cancelled": false, "isCompleted": false},
		bson.M{"$set": bson.M{"cancelled": true}})
}

func (r *mongoAppointments) MarkCompleted(ctx context.Context, id primitive.ObjectID) error {
	return conditionalUpdate(ctx, r.coll, id,
		bson.M{"cancelled": false, "isCompleted": false},
		bson.M{"$set": bson.M{"isCompleted": true}})
}

func (r *mongoAppointments) MarkPaid(ctx context.Context, id primitive.ObjectID) error {
	return conditionalUpdate(ctx, r.coll, id,
		bson.M{"cancelled": false, "payment": false},
		bson.M{"$set": bson.M{"payment": true}})
}

func (r *mongoAppointments) SetPaymentLink(ctx context.Context, id primitive.ObjectID, linkID string) error {
	return updateByID(ctx, r.coll, id, bson.M{"$set": bson.M{"paymentLinkId": linkID}})
}

func (r *mongoAppointments) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}

// --- reviews ---

type mongoReviews struct{ coll *mongo.Collection }

func (r *mongoReviews) Create(ctx context.Context, rv *models.Review) error {
	if rv.ID.IsZero() {
		rv.ID = primitive.NewObjectID()
	}
	return insert(ctx, r.coll, rv)
}

func (r *mongoReviews) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	return findOne[models.Review](ctx, r.coll, bson.M{"_id": id})
}

func (r *mongoReviews) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoReviews) List(ctx context.Context, doctorID *primitive.ObjectID) ([]models.Review, error) {
	filter := bson.M{}
	if doctorID != nil {
		filter["doctor"] = *doctorID
	}
	return findAll[models.Review](ctx, r.coll, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoReviews) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Review, error) {
	return findAll[models.Review](ctx, r.coll, bson.M{"user": userID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoReviews) Stats(ctx context.Context, doctorID primitive.ObjectID) (RatingStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "doctor", Value: doctorID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$doctor"},
			{Key: "average", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return RatingStats{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Average float64 `bson:"average"`
		Count   int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return RatingStats{}, err
	}
	if len(rows) == 0 {
		return RatingStats{}, nil
	}
	return RatingStats{Average: rows[0].Average, Count: rows[0].Count}, nil
}

// --- outbox ---

type mongoOutbox struct{ coll *mongo.Collection }

func (r *mongoOutbox) Enqueue(ctx context.Context, n *models.Notification) error {
	return insert(ctx, r.coll, n)
}

func (r *mongoOutbox) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	return findOne[models.Notification](ctx, r.coll, bson.M{"_id": id})
}

// claimable matches entries that are unsent and not under a live lease.
func claimable(now time.Time) bson.M {
	return bson.M{
		"status": bson.M{"$ne": models.NotificationSent},
		"$or": bson.A{
			bson.M{"status": bson.M{"$ne": models.NotificationSending}},
			bson.M{"leaseEnd": bson.M{"$lte": now}},
		},
	}
}

func (r *mongoOutbox) Claim(ctx context.Context, id string, now, leaseEnd time.Time) (*models.Notification, error) {
	filter := claimable(now)
	filter["_id"] = id
	update := bson.M{"$set": bson.M{"status": models.NotificationSending, "leaseEnd": leaseEnd}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out models.Notification
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *mongoOutbox) MarkSent(ctx context.Context, id string, at time.Time) error {
	return updateByID(ctx, r.coll, id, bson.M{
		"$set":   bson.M{"status": models.NotificationSent, "sentAt": at, "lastError": ""},
		"$unset": bson.M{"leaseEnd": ""},
		"$inc":   bson.M{"attempts": 1},
	})
}

func (r *mongoOutbox) MarkFailed(ctx context.Context, id string, reason string) error {
	return updateByID(ctx, r.coll, id, bson.M{
		"$set":   bson.M{"status": models.NotificationFailed, "lastError": reason},
		"$unset": bson.M{"leaseEnd": ""},
		"$inc":   bson.M{"attempts": 1},
	})
}

func (r *mongoOutbox) Due(ctx context.Context, now, olderThan time.Time, maxAttempts, limit int) ([]models.Notification, error) {
	filter := claimable(now)
	filter["attempts"] = bson.M{"$lt": maxAttempts}
	filter["createdAt"] = bson.M{"$lt": olderThan}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return findAll[models.Notification](ctx, r.coll, filter, opts)
}
