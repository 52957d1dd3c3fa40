package mongo

import (
	"context"
	"time"

	"github.com/hirevox/hirevox/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TurnRepository interface {
	Insert(ctx context.Context, t *models.TurnLog) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnLog, error)
}

type turnRepo struct {
	col *mongo.Collection
}

func NewTurnRepo(db *mongo.Database) TurnRepository {
	return &turnRepo{col: db.Collection("turn_log")}
}

func (r *turnRepo) Insert(ctx context.Context, t *models.TurnLog) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, t)
	return err
}

func (r *turnRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TurnLog, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "turn_index", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TurnLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
