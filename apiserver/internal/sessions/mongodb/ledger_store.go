package mongodb

import (
	"context"
	"time"

	"github.com/krancour/identity/apiserver/internal/meta"
	"github.com/krancour/identity/apiserver/internal/sessions"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	createIndexTimeout = 5 * time.Second
	ledgerStoreName    = "session ledger"
	duplicateKeyCode   = 11000
)

// ledgerStore is a MongoDB-based implementation of the sessions.LedgerStore
// interface.
type ledgerStore struct {
	collection    *mongo.Collection
	singleSession bool
	now           func() time.Time
}

// NewLedgerStore returns a MongoDB-based implementation of the
// sessions.LedgerStore interface. When singleSession is true, sessions are
// keyed by user alone and every new session replaces the user's last one.
func NewLedgerStore(
	database *mongo.Database,
	singleSession bool,
) (sessions.LedgerStore, error) {
	ctx, cancel :=
		context.WithTimeout(context.Background(), createIndexTimeout)
	defer cancel()
	unique := true
	collection := database.Collection("sessions")
	if _, err := collection.Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{
				Keys: bson.D{
					{Key: "userID", Value: 1},
					{Key: "sessionID", Value: 1},
				},
				Options: &options.IndexOptions{
					Unique: &unique,
				},
			},
			// Fast lookup by session ID alone, used when refreshing
			{
				Keys: bson.M{
					"sessionID": 1,
				},
				Options: &options.IndexOptions{
					Unique: &unique,
				},
			},
			// Listing a user's sessions, newest first
			{
				Keys: bson.D{
					{Key: "userID", Value: 1},
					{Key: "createdAt", Value: -1},
				},
			},
		},
	); err != nil {
		return nil, errors.Wrap(err, "error adding indexes to sessions collection")
	}
	return &ledgerStore{
		collection:    collection,
		singleSession: singleSession,
		now:           time.Now,
	}, nil
}

func (l *ledgerStore) Upsert(
	ctx context.Context,
	session sessions.Session,
) error {
	filter := bson.M{
		"userID":    session.UserID,
		"sessionID": session.SessionID,
	}
	if l.singleSession {
		filter = bson.M{"userID": session.UserID}
	}
	now := l.now()
	if _, err := l.collection.UpdateOne(
		ctx,
		filter,
		bson.M{
			"$set": bson.M{
				"userID":    session.UserID,
				"sessionID": session.SessionID,
				"role":      session.Role,
				"token":     session.Token,
				"expiresAt": session.ExpiresAt,
				"updatedAt": now,
			},
			"$setOnInsert": bson.M{
				"createdAt": now,
			},
		},
		options.Update().SetUpsert(true),
	); err != nil {
		if isDuplicateKeyError(err) {
			return &meta.ErrConflict{
				Type: "Session",
				ID:   session.SessionID,
				Reason: "A session with this ID is already recorded for a " +
					"different user.",
			}
		}
		return errors.Wrapf(
			&meta.ErrStorageUnavailable{Store: ledgerStoreName, Err: err},
			"error upserting session %q",
			session.SessionID,
		)
	}
	return nil
}

func (l *ledgerStore) Rotate(
	ctx context.Context,
	oldToken string,
	session sessions.Session,
) error {
	res, err := l.collection.UpdateOne(
		ctx,
		bson.M{
			"userID":    session.UserID,
			"sessionID": session.SessionID,
			"token":     oldToken,
		},
		bson.M{
			"$set": bson.M{
				"token":     session.Token,
				"expiresAt": session.ExpiresAt,
				"updatedAt": l.now(),
			},
		},
	)
	if err != nil {
		return errors.Wrapf(
			&meta.ErrStorageUnavailable{Store: ledgerStoreName, Err: err},
			"error rotating refresh token for session %q",
			session.SessionID,
		)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	count, err := l.collection.CountDocuments(
		ctx,
		bson.M{
			"userID":    session.UserID,
			"sessionID": session.SessionID,
		},
	)
	if err != nil {
		return errors.Wrapf(
			&meta.ErrStorageUnavailable{Store: ledgerStoreName, Err: err},
			"error counting sessions with ID %q",
			session.SessionID,
		)
	}
	if count == 0 {
		return &meta.ErrNotFound{Type: "Session", ID: session.SessionID}
	}
	return &meta.ErrConflict{
		Type:   "Session",
		ID:     session.SessionID,
		Reason: "The session's refresh token has already been replaced.",
	}
}

func (l *ledgerStore) FindBySessionID(
	ctx context.Context,
	sessionID string,
) (sessions.Session, error) {
	session := sessions.Session{}
	res := l.collection.FindOne(ctx, bson.M{"sessionID": sessionID})
	if res.Err() == mongo.ErrNoDocuments {
		return session, &meta.ErrNotFound{Type: "Session", ID: sessionID}
	}
	if res.Err() != nil {
		return session, errors.Wrapf(
			&meta.ErrStorageUnavailable{Store: ledgerStoreName, Err: res.Err()},
			"error finding session %q",
			sessionID,
		)
	}
	if err := res.Decode(&session); err != nil {
		return session, errors.Wrapf(err, "error decoding session %q", sessionID)
	}
	return session, nil
}

func (l *ledgerStore) FindByUserID(
	ctx context.Context,
	userID string,
) ([]sessions.Session, error) {
	ss, err := l.find(ctx, bson.M{"userID": userID})
	return ss, errors.Wrapf(err, "error finding sessions for user %q", userID)
}

func (l *ledgerStore) List(ctx context.Context) ([]sessions.Session, error) {
	ss, err := l.find(ctx, bson.M{})
	return ss, errors.Wrap(err, "error finding sessions")
}

func (l *ledgerStore) find(
	ctx context.Context,
	filter bson.M,
) ([]sessions.Session, error) {
	cur, err := l.collection.Find(
		ctx,
		filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, &meta.ErrStorageUnavailable{Store: ledgerStoreName, Err: err}
	}
	ss := []sessions.Session{}
	if err := cur.All(ctx, &ss); err != nil {
		return nil, errors.Wrap(err, "error decoding sessions")
	}
	return ss, nil
}

func (l *ledgerStore) DeleteBySessionID(
	ctx context.Context,
	sessionID string,
) error {
	res, err := l.collection.DeleteOne(ctx, bson.M{"sessionID": sessionID})
	if err != nil {
		return errors.Wrapf(
			&meta.ErrStorageUnavailable{Store: ledgerStoreName, Err: err},
			"error deleting session %q",
			sessionID,
		)
	}
	if res.DeletedCount == 0 {
		return &meta.ErrNotFound{Type: "Session", ID: sessionID}
	}
	return nil
}

func (l *ledgerStore) DeleteAllForUser(
	ctx context.Context,
	userID string,
) (int64, error) {
	res, err := l.collection.DeleteMany(ctx, bson.M{"userID": userID})
	if err != nil {
		return 0, errors.Wrapf(
			&meta.ErrStorageUnavailable{Store: ledgerStoreName, Err: err},
			"error deleting sessions for user %q",
			userID,
		)
	}
	return res.DeletedCount, nil
}

func isDuplicateKeyError(err error) bool {
	switch e := err.(type) {
	case mongo.WriteException:
		for _, writeErr := range e.WriteErrors {
			if writeErr.Code == duplicateKeyCode {
				return true
			}
		}
	case mongo.CommandError:
		return e.Code == duplicateKeyCode
	}
	return false
}
