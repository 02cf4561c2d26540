package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"law_arch/internal/config"
	"law_arch/internal/db"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("upsert section", func(mt *mtest.T) {
		store := db.NewMongoStore(mt.DB, config.DBConfig{})
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		require.NoError(mt, store.UpsertSection(context.Background(), section("39-22-104", 1, "aaa")))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
	})

	mt.Run("get section", func(mt *mtest.T) {
		store := db.NewMongoStore(mt.DB, config.DBConfig{})
		ns := mt.DB.Name() + ".sections"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "39-22-104"},
			{Key: "jurisdiction", Value: "us-co"},
			{Key: "position", Value: 3},
			{Key: "raw_checksum", Value: "aaa"},
		}))

		got, err := store.GetSection(context.Background(), "39-22-104")
		require.NoError(mt, err)
		require.NotNil(mt, got)
		assert.Equal(mt, "39-22-104", got.Key)
		assert.Equal(mt, 3, got.Position)
		assert.Equal(mt, "aaa", got.RawChecksum)
	})

	mt.Run("missing section", func(mt *mtest.T) {
		store := db.NewMongoStore(mt.DB, config.DBConfig{})
		mt.AddMockResponses(mtest.CreateCursorResponse(0, mt.DB.Name()+".sections", mtest.FirstBatch))

		got, err := store.GetSection(context.Background(), "nope")
		require.NoError(mt, err)
		assert.Nil(mt, got)
	})

	mt.Run("sections by act", func(mt *mtest.T) {
		store := db.NewMongoStore(mt.DB, config.DBConfig{})
		ns := mt.DB.Name() + ".sections"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "a"}, {Key: "position", Value: 1}},
			bson.D{{Key: "_id", Value: "b"}, {Key: "position", Value: 2}},
		))

		got, err := store.SectionsByAct(context.Background(), "act")
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		assert.Equal(mt, "b", got[1].Key)
	})

	mt.Run("stats", func(mt *mtest.T) {
		store := db.NewMongoStore(mt.DB, config.DBConfig{})
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, mt.DB.Name()+".sections", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: nil}, {Key: "total", Value: 7}}),
			mtest.CreateCursorResponse(0, mt.DB.Name()+".acts", mtest.FirstBatch),
		)

		st, err := store.Stats(context.Background(), "us-co")
		require.NoError(mt, err)
		assert.Equal(mt, db.Stats{Sections: 7}, st)
	})
}
