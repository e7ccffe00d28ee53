package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	rowsCollection     = "checkin_rows"
	countersCollection = "counters"
)

type rowDoc struct {
	Worksheet string    `bson:"worksheet"`
	Seq       int64     `bson:"seq"`
	Header    bool      `bson:"header"`
	Cells     []string  `bson:"cells"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoTable stores one document per row. Row order and serial numbers come
// from atomic counters in the counters collection.
type MongoTable struct {
	rows      *mongo.Collection
	counters  *mongo.Collection
	worksheet string
}

func NewMongoTable(ctx context.Context, db *mongo.Database, worksheet string) (*MongoTable, error) {
	t := &MongoTable{
		rows:      db.Collection(rowsCollection),
		counters:  db.Collection(countersCollection),
		worksheet: worksheet,
	}

	_, err := t.rows.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "worksheet", Value: 1}, {Key: "header", Value: -1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		return nil, fmt.Errorf("could not index %s: %w", rowsCollection, err)
	}
	return t, nil
}

func (t *MongoTable) next(ctx context.Context, key string) (int64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := t.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("could not advance counter %s: %w", key, err)
	}
	return doc.Value, nil
}

func (t *MongoTable) EnsureWorksheet(ctx context.Context, header []string) error {
	n, err := t.rows.CountDocuments(ctx, bson.M{"worksheet": t.worksheet}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("could not inspect worksheet %s: %w", t.worksheet, err)
	}
	if n > 0 {
		return nil
	}
	return t.SetHeader(ctx, header)
}

func (t *MongoTable) SetHeader(ctx context.Context, header []string) error {
	_, err := t.rows.UpdateOne(ctx,
		bson.M{"worksheet": t.worksheet, "header": true},
		bson.M{
			"$set":         bson.M{"cells": header},
			"$setOnInsert": bson.M{"seq": int64(0), "created_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("could not write header: %w", err)
	}
	return nil
}

func (t *MongoTable) AppendRow(ctx context.Context, row []string) error {
	seq, err := t.next(ctx, "rows:"+t.worksheet)
	if err != nil {
		return err
	}
	_, err = t.rows.InsertOne(ctx, rowDoc{
		Worksheet: t.worksheet,
		Seq:       seq,
		Cells:     row,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("could not append row: %w", err)
	}
	return nil
}

func (t *MongoTable) GetAllValues(ctx context.Context) ([][]string, error) {
	cur, err := t.rows.Find(ctx,
		bson.M{"worksheet": t.worksheet},
		options.Find().SetSort(bson.D{{Key: "header", Value: -1}, {Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("could not read rows: %w", err)
	}
	defer cur.Close(ctx)

	var out [][]string
	for cur.Next(ctx) {
		var doc rowDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("could not decode row: %w", err)
		}
		out = append(out, doc.Cells)
	}
	return out, cur.Err()
}

func (t *MongoTable) NextSerial(ctx context.Context) (int, error) {
	n, err := t.next(ctx, "serial:"+t.worksheet)
	return int(n), err
}
