package rewards

import (
	"context"
	"time"

	config "github.com/glkeru/loyalty/rewards/internal/config"
	models "github.com/glkeru/loyalty/rewards/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Каталог в MongoDB: products, bundles, promos, rules
type CatalogDB struct {
	mgo *mongo.Client
	db  *mongo.Database
}

func NewCatalogDB() (*CatalogDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mng, err := config.Required("ENGINE_MONGO")
	if err != nil {
		return nil, err
	}

	opts := options.Client().ApplyURI("mongodb://" + mng)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &CatalogDB{client, client.Database(config.String("ENGINE_MONGO_DB", "rewardsDB"))}, nil
}

func (c *CatalogDB) Close(ctx context.Context) error {
	return c.mgo.Disconnect(ctx)
}

func (c *CatalogDB) GetProducts(ctx context.Context) ([]models.Product, error) {
	return findAll[models.Product](ctx, c.db.Collection("products"), bson.M{})
}

func (c *CatalogDB) GetBundles(ctx context.Context) ([]models.Bundle, error) {
	return findAll[models.Bundle](ctx, c.db.Collection("bundles"), bson.M{})
}

func (c *CatalogDB) GetPromoCodes(ctx context.Context) ([]models.PromoCode, error) {
	return findAll[models.PromoCode](ctx, c.db.Collection("promos"), bson.M{})
}

// Неактивные правила отбрасываются при построении сервиса, здесь читаем все
func (c *CatalogDB) GetActionRules(ctx context.Context) ([]models.ActionRule, error) {
	return findAll[models.ActionRule](ctx, c.db.Collection("rules"), bson.M{})
}

// Публикация каталога: записи заменяются или добавляются по ключу, лишние не удаляются
func (c *CatalogDB) SaveCatalog(ctx context.Context, catalog models.Catalog) error {
	for _, p := range catalog.Products {
		if err := upsert(ctx, c.db.Collection("products"), bson.M{"id": p.ID}, p); err != nil {
			return err
		}
	}
	for _, b := range catalog.Bundles {
		if err := upsert(ctx, c.db.Collection("bundles"), bson.M{"id": b.ID}, b); err != nil {
			return err
		}
	}
	for _, p := range catalog.Promos {
		if err := upsert(ctx, c.db.Collection("promos"), bson.M{"code": p.Code}, p); err != nil {
			return err
		}
	}
	for _, r := range catalog.Rules {
		if err := upsert(ctx, c.db.Collection("rules"), bson.M{"id": r.ID}, r); err != nil {
			return err
		}
	}
	return nil
}

func upsert(ctx context.Context, coll *mongo.Collection, filter bson.M, doc any) error {
	_, err := coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter bson.M) ([]T, error) {
	cur, err := coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	items := make([]T, 0)
	for cur.Next(ctx) {
		var item T
		if err := cur.Decode(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, cur.Err()
}
