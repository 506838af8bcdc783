//go:generate mockgen -destination mock_tokenrepo/mock_tokenrepo.go github.com/anyproto/anytype-push-dispatch/repo/tokenrepo TokenRepo

package tokenrepo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/anyproto/anytype-push-dispatch/db"
	"github.com/anyproto/anytype-push-dispatch/domain"
	"github.com/anyproto/anytype-push-dispatch/redisprovider"
)

const CName = "push.tokenrepo"

const collName = "token"

var log = logger.NewNamed(CName)

var (
	ErrTokenExists = errors.New("token exists")
)

func New() TokenRepo {
	return new(tokenRepo)
}

type configSource interface {
	GetTokenCacheTtlSec() int
}

type TokenRepo interface {
	// Save registers a token for a recipient; re-registering revalidates it.
	Save(ctx context.Context, token domain.Token) (err error)
	// Revoke removes a token previously registered by the recipient.
	Revoke(ctx context.Context, recipientId, tokenId string) (err error)
	// Invalidate flips a token to invalid. Idempotent: already-invalid and
	// unknown tokens report already=true.
	Invalidate(ctx context.Context, tokenId string) (already bool, err error)
	// Lookup returns the valid tokens of a recipient.
	Lookup(ctx context.Context, recipientId string) (tokens []domain.Token, err error)
	app.ComponentRunnable
}

type tokenRepo struct {
	coll     *mongo.Collection
	cache    redis.UniversalClient
	cacheTtl time.Duration
}

func (t *tokenRepo) Init(a *app.App) (err error) {
	t.coll = a.MustComponent(db.CName).(db.Database).Db().Collection(collName)
	if ttl := a.MustComponent("config").(configSource).GetTokenCacheTtlSec(); ttl > 0 {
		if c := a.Component(redisprovider.CName); c != nil {
			t.cache = c.(redisprovider.RedisProvider).Redis()
			t.cacheTtl = time.Duration(ttl) * time.Second
		}
	}
	return
}

func (t *tokenRepo) Name() (name string) {
	return CName
}

func (t *tokenRepo) Run(ctx context.Context) error {
	_, err := t.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{"recipientId", 1}, {"status", 1}},
	})
	return err
}

func (t *tokenRepo) Save(ctx context.Context, token domain.Token) (err error) {
	now := time.Now().Unix()
	opts := options.Update().SetUpsert(true)
	_, err = t.coll.UpdateByID(
		ctx,
		token.Id,
		bson.D{
			{"$set", bson.D{
				{"recipientId", token.RecipientId},
				{"platform", token.Platform},
				{"status", domain.TokenStatusValid},
				{"updated", now},
			}},
			{"$setOnInsert", bson.D{{"created", now}}},
		},
		opts,
	)
	if mongo.IsDuplicateKeyError(err) {
		return ErrTokenExists
	}
	if err != nil {
		return
	}
	t.dropCache(ctx, token.RecipientId)
	return
}

func (t *tokenRepo) Revoke(ctx context.Context, recipientId, tokenId string) (err error) {
	if _, err = t.coll.DeleteOne(ctx, bson.D{
		{"_id", tokenId},
		{"recipientId", recipientId},
	}); err != nil {
		return
	}
	t.dropCache(ctx, recipientId)
	return
}

func (t *tokenRepo) Invalidate(ctx context.Context, tokenId string) (already bool, err error) {
	res := t.coll.FindOneAndUpdate(
		ctx,
		bson.D{{"_id", tokenId}},
		bson.D{{"$set", bson.D{
			{"status", domain.TokenStatusInvalid},
			{"updated", time.Now().Unix()},
		}}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	)
	var prev domain.Token
	if err = res.Decode(&prev); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return true, nil
		}
		return false, err
	}
	t.dropCache(ctx, prev.RecipientId)
	return prev.Status == domain.TokenStatusInvalid, nil
}

func (t *tokenRepo) Lookup(ctx context.Context, recipientId string) (tokens []domain.Token, err error) {
	if tokens, ok := t.cacheGet(ctx, recipientId); ok {
		return tokens, nil
	}
	cur, err := t.coll.Find(ctx, bson.D{
		{"recipientId", recipientId},
		{"status", domain.TokenStatusValid},
	})
	if err != nil {
		return
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	if err = cur.All(ctx, &tokens); err != nil {
		return
	}
	t.cacheSet(ctx, recipientId, tokens)
	return
}

func (t *tokenRepo) cacheKey(recipientId string) string {
	return "push:tokens:" + recipientId
}

func (t *tokenRepo) cacheGet(ctx context.Context, recipientId string) (tokens []domain.Token, ok bool) {
	if t.cache == nil {
		return
	}
	data, err := t.cache.Get(ctx, t.cacheKey(recipientId)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Debug("cache get error", zap.Error(err))
		}
		return
	}
	if err = json.Unmarshal(data, &tokens); err != nil {
		log.Debug("cache decode error", zap.Error(err))
		return nil, false
	}
	return tokens, true
}

func (t *tokenRepo) cacheSet(ctx context.Context, recipientId string, tokens []domain.Token) {
	if t.cache == nil {
		return
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return
	}
	if err = t.cache.Set(ctx, t.cacheKey(recipientId), data, t.cacheTtl).Err(); err != nil {
		log.Debug("cache set error", zap.Error(err))
	}
}

func (t *tokenRepo) dropCache(ctx context.Context, recipientId string) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Del(ctx, t.cacheKey(recipientId)).Err(); err != nil {
		log.Debug("cache del error", zap.Error(err))
	}
}

func (t *tokenRepo) Close(ctx context.Context) (err error) {
	return nil
}
