package mongo

import (
	"context"
	"fmt"
	"time"

	"ledger_bot/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Client 封装 MongoDB 客户端及其配置
type Client struct {
	*mongo.Client
	dbName string
}

// Config 定义 MongoDB 连接配置
type Config struct {
	URI      string        // MongoDB 连接 URI，例如 "mongodb://localhost:27017"
	Database string        // 数据库名称
	Timeout  time.Duration // 连接超时时间
}

// NewClient 初始化 MongoDB 客户端并验证连接
func NewClient(cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("MongoDB URI cannot be empty")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("database name cannot be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		Client: client,
		dbName: cfg.Database,
	}, nil
}

// InitFromConfig 从应用配置初始化 MongoDB 客户端
func InitFromConfig(cfg *config.Config) (*Client, error) {
	return NewClient(Config{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDBName,
	})
}

// Close 关闭 MongoDB 客户端连接
func (c *Client) Close(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Disconnect(ctx)
}

// Database 返回指定数据库的句柄
func (c *Client) Database() *mongo.Database {
	if c.Client == nil {
		return nil
	}
	return c.Client.Database(c.dbName)
}

// Ping 验证与 MongoDB 的连接
func (c *Client) Ping(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("MongoDB client is not initialized")
	}
	return c.Client.Ping(ctx, readpref.Primary())
}
